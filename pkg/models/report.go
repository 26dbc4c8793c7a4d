package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ReportTypeBug        = "bug"
	ReportTypeInitiative = "initiative"
	ReportTypeFeedback   = "feedback"

	ReportStatusActive   = "active"
	ReportStatusArchived = "archived"

	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ValidReportType reports whether t is one of the accepted report types.
func ValidReportType(t string) bool {
	return t == ReportTypeBug || t == ReportTypeInitiative || t == ReportTypeFeedback
}

// ValidPriority reports whether p is one of the accepted priorities.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh || p == PriorityCritical
}

// Report is one feedback/bug/initiative submission. Diagnostic blobs are
// written once at creation and never updated afterwards; each is optional
// and nil when the widget did not capture it.
type Report struct {
	ID            uuid.UUID `db:"id"             json:"id"`
	ProjectID     uuid.UUID `db:"project_id"     json:"project_id"`
	Type          string    `db:"type"           json:"type"`
	Title         string    `db:"title"          json:"title"`
	Description   string    `db:"description"    json:"description"`
	Status        string    `db:"status"         json:"status"`
	Priority      string    `db:"priority"       json:"priority"`
	ReporterName  *string   `db:"reporter_name"  json:"reporter_name,omitempty"`
	ReporterEmail *string   `db:"reporter_email" json:"reporter_email,omitempty"`
	URL           *string   `db:"url"            json:"url,omitempty"`
	UserAgent     *string   `db:"user_agent"     json:"user_agent,omitempty"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"     json:"updated_at"`

	ConsoleLogs        []ConsoleLogEntry   `db:"console_logs"        json:"console_logs,omitempty"`
	NetworkRequests    []NetworkRequest    `db:"network_requests"    json:"network_requests,omitempty"`
	PerformanceMetrics *PerformanceMetrics `db:"performance_metrics" json:"performance_metrics,omitempty"`
	ErrorContext       *ErrorContext       `db:"error_context"       json:"error_context,omitempty"`
	InteractionData    json.RawMessage     `db:"interaction_data"    json:"interaction_data,omitempty"`
}

// Attachment is file metadata for an object held in external storage.
// ReportID is nil until the attachment is linked at report creation; an
// attachment links to at most one report.
type Attachment struct {
	ID          uuid.UUID  `db:"id"           json:"id"`
	ProjectID   uuid.UUID  `db:"project_id"   json:"project_id"`
	ReportID    *uuid.UUID `db:"report_id"    json:"report_id,omitempty"`
	ObjectKey   string     `db:"object_key"   json:"object_key"`
	Filename    string     `db:"filename"     json:"filename"`
	ContentType string     `db:"content_type" json:"content_type"`
	SizeBytes   int64      `db:"size_bytes"   json:"size_bytes"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
}
