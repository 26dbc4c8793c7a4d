package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey represents a dashboard authentication key scoped to a project.
// Raw keys are shown once at creation; only the bcrypt hash is stored.
type APIKey struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	ProjectID  uuid.UUID  `db:"project_id"   json:"project_id"`
	Name       string     `db:"name"         json:"name"`
	KeyHash    string     `db:"key_hash"     json:"-"`
	KeyPrefix  string     `db:"key_prefix"   json:"key_prefix"`
	Scopes     []string   `db:"scopes"       json:"scopes"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	DeletedAt  *time.Time `db:"deleted_at"   json:"-"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}

// IntegrationKey is the public token an embedded widget uses to identify
// which project it reports into. It is not a secret and is stored in clear.
type IntegrationKey struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	ProjectID  uuid.UUID  `db:"project_id"   json:"project_id"`
	Key        string     `db:"key"          json:"key"`
	Label      string     `db:"label"        json:"label"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	DeletedAt  *time.Time `db:"deleted_at"   json:"-"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
}
