package models

// Diagnostic bundle types captured by the browser widget at submission time.
// Timestamps are epoch milliseconds as reported by the browser clock.

// ConsoleLogEntry is a single buffered console line.
type ConsoleLogEntry struct {
	Level     string  `json:"level"`
	Message   string  `json:"message"`
	Timestamp int64   `json:"timestamp"`
	Stack     *string `json:"stack,omitempty"`
}

// NetworkRequest is a single captured resource timing entry.
// Duration is milliseconds; a zero duration usually means the request failed.
type NetworkRequest struct {
	URL       string  `json:"url"`
	Method    string  `json:"method"`
	Status    int     `json:"status"`
	Duration  float64 `json:"duration"`
	Timestamp int64   `json:"timestamp"`
}

// WebVitals is the standard browser performance vector. Every field is
// independently optional; a report may carry a partial vector.
type WebVitals struct {
	FCP  *float64 `json:"fcp,omitempty"`
	LCP  *float64 `json:"lcp,omitempty"`
	CLS  *float64 `json:"cls,omitempty"`
	FID  *float64 `json:"fid,omitempty"`
	TTI  *float64 `json:"tti,omitempty"`
	TTFB *float64 `json:"ttfb,omitempty"`
}

// PerformanceMetrics is the stored performance blob: the raw vitals plus the
// categorization derived at submission time.
type PerformanceMetrics struct {
	WebVitals
	Category string   `json:"category,omitempty"`
	Score    *float64 `json:"score,omitempty"`
}

// UnhandledError is one window.onerror capture.
type UnhandledError struct {
	Message   string  `json:"message"`
	Source    string  `json:"source,omitempty"`
	Line      int     `json:"line,omitempty"`
	Column    int     `json:"column,omitempty"`
	Stack     *string `json:"stack,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// PromiseRejection is one unhandledrejection capture.
type PromiseRejection struct {
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

// SecurityViolation is a CORS failure or CSP report observed by the widget.
type SecurityViolation struct {
	Kind      string `json:"kind"` // "cors" or "csp"
	URL       string `json:"url,omitempty"`
	Directive string `json:"directive,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorContext is the structured unhandled-error blob.
type ErrorContext struct {
	UnhandledErrors    []UnhandledError    `json:"unhandled_errors,omitempty"`
	PromiseRejections  []PromiseRejection  `json:"promise_rejections,omitempty"`
	SecurityViolations []SecurityViolation `json:"security_violations,omitempty"`
	Patterns           []string            `json:"patterns,omitempty"`
	TotalErrorCount    int                 `json:"total_error_count"`
}
