// Package models contains shared data models used across the FeedbackLens codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is the tenant unit. Every report, key, and attachment belongs to a project.
type Project struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	Slug      string    `db:"slug"       json:"slug"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
