package models

import (
	"time"

	"github.com/google/uuid"
)

// Correlation types emitted by the detectors.
const (
	CorrelationErrorNetwork        = "error_network"
	CorrelationPerformanceResource = "performance_resource"
	CorrelationTimingSequence      = "timing_sequence"
	CorrelationPatternMatch        = "pattern_match"
)

// Correlation is a derived claim that two observed events are likely related.
// Correlations are computed fresh on every query and never persisted.
type Correlation struct {
	ID             uuid.UUID       `json:"id"`
	Type           string          `json:"type"`
	Confidence     int             `json:"confidence"`
	Description    string          `json:"description"`
	Evidence       []string        `json:"evidence"`
	Timeline       []TimelineEvent `json:"timeline,omitempty"`
	RelatedReports []uuid.UUID     `json:"related_reports"`
	Pattern        string          `json:"pattern,omitempty"`
	FirstSeen      time.Time       `json:"first_seen"`
	LastSeen       time.Time       `json:"last_seen"`
	Frequency      int             `json:"frequency"`
}

// TimelineEvent is one entry in a correlation's event timeline.
type TimelineEvent struct {
	Timestamp int64  `json:"timestamp"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail"`
}

// ErrorPattern is a recurring signature observed across multiple reports.
// Derived on every query, never persisted.
type ErrorPattern struct {
	Type            string      `json:"type"`
	Description     string      `json:"description"`
	Occurrences     int         `json:"occurrences"`
	AffectedReports []uuid.UUID `json:"affected_reports"`
	FirstSeen       time.Time   `json:"first_seen"`
	LastSeen        time.Time   `json:"last_seen"`
}

// CorrelationInsight is a human-readable recommendation reduced from the
// correlation and pattern sets.
type CorrelationInsight struct {
	Category       string `json:"category"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Impact         string `json:"impact"`
	Recommendation string `json:"recommendation"`
	AffectedCount  int    `json:"affected_count"`
}
