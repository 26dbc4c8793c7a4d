package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	mw "github.com/feedbacklens/feedbacklens/internal/api/middleware"
	"github.com/feedbacklens/feedbacklens/internal/api/response"
	"github.com/feedbacklens/feedbacklens/internal/analysis"
	"github.com/feedbacklens/feedbacklens/internal/store"
	"github.com/feedbacklens/feedbacklens/pkg/models"
)

// defaultAnalysisWindow bounds the report set fed to the detectors when the
// caller supplies no window of their own.
const defaultAnalysisWindow = 24 * time.Hour

// namedWindows are the shorthand values accepted for the time_window param.
var namedWindows = map[string]time.Duration{
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

type correlationSummary struct {
	TotalCorrelations int      `json:"total_correlations"`
	ConfidenceScore   int      `json:"confidence_score"`
	TypesFound        []string `json:"types_found"`
	AnalysisWindow    string   `json:"analysis_window"`
}

type correlationResponse struct {
	Correlations []models.Correlation        `json:"correlations"`
	Summary      correlationSummary          `json:"summary"`
	Patterns     []models.ErrorPattern       `json:"patterns"`
	Insights     []models.CorrelationInsight `json:"insights"`
	Pagination   response.PaginationMeta     `json:"pagination"`
}

// NewCorrelationsHandler returns the handler for GET /projects/{projectID}/correlations.
// Correlations are recomputed from the windowed report set on every call;
// nothing is cached or persisted, so results always reflect current data.
func NewCorrelationsHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}

		q := r.URL.Query()

		from, to, window, err := analysisWindow(q.Get("time_window"), q.Get("date_from"), q.Get("date_to"))
		if err != nil {
			response.Error(w, r, response.CodeValidation, err.Error(), nil)
			return
		}

		params := analysis.CorrelateParams{}
		if v := q.Get("min_confidence"); v != "" {
			mc, err := strconv.Atoi(v)
			if err != nil || mc < 0 || mc > 100 {
				response.Error(w, r, response.CodeValidation, "min_confidence must be an integer between 0 and 100", nil)
				return
			}
			params.MinConfidence = mc
		}
		if v := q.Get("types"); v != "" {
			for _, t := range strings.Split(v, ",") {
				t = strings.TrimSpace(t)
				if !validCorrelationType(t) {
					response.Error(w, r, response.CodeValidation, "unknown correlation type: "+t, nil)
					return
				}
				params.Types = append(params.Types, t)
			}
		}

		var focusReport *uuid.UUID
		if v := q.Get("report_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				response.Error(w, r, response.CodeValidation, "report_id must be a valid UUID", nil)
				return
			}
			focusReport = &id
		}

		reports, err := s.ListReportsInWindow(r.Context(), projectID, from, to)
		if err != nil {
			response.Error(w, r, response.CodeInternal, "Failed to load reports", nil)
			return
		}

		correlations := analysis.Correlate(reports, params)
		if focusReport != nil {
			correlations = filterByReport(correlations, *focusReport)
		}
		patterns := analysis.DetectPatterns(reports)
		insights := analysis.GenerateInsights(correlations)

		page, limit := parsePagination(q.Get("page"), q.Get("limit"))
		paged := analysis.Paginate(correlations, (page-1)*limit, limit)
		if paged == nil {
			paged = []models.Correlation{}
		}
		if patterns == nil {
			patterns = []models.ErrorPattern{}
		}
		if insights == nil {
			insights = []models.CorrelationInsight{}
		}

		response.Document(w, correlationResponse{
			Correlations: paged,
			Summary:      summarize(correlations, window),
			Patterns:     patterns,
			Insights:     insights,
			Pagination:   response.NewPaginationMeta(page, limit, len(correlations)),
		})
	}
}

// analysisWindow resolves the three window parameters. Explicit date bounds
// win over the named window; a lone date_from runs to now, a lone date_to
// starts a default window back from it.
func analysisWindow(named, fromStr, toStr string) (from, to time.Time, label string, err error) {
	now := time.Now().UTC()

	if fromStr != "" || toStr != "" {
		from, err = parseTimeParam(fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, "", errValidation("date_from must be a valid RFC3339 timestamp")
		}
		to, err = parseTimeParam(toStr)
		if err != nil {
			return time.Time{}, time.Time{}, "", errValidation("date_to must be a valid RFC3339 timestamp")
		}
		if to.IsZero() {
			to = now
		}
		if from.IsZero() {
			from = to.Add(-defaultAnalysisWindow)
		}
		if !from.Before(to) {
			return time.Time{}, time.Time{}, "", errValidation("date_from must be before date_to")
		}
		return from, to, "custom", nil
	}

	d := defaultAnalysisWindow
	label = "24h"
	if named != "" {
		var ok bool
		if d, ok = namedWindows[named]; !ok {
			return time.Time{}, time.Time{}, "", errValidation("time_window must be one of 1h, 6h, 24h, 7d, 30d")
		}
		label = named
	}
	return now.Add(-d), now, label, nil
}

func summarize(correlations []models.Correlation, window string) correlationSummary {
	s := correlationSummary{
		TotalCorrelations: len(correlations),
		TypesFound:        []string{},
		AnalysisWindow:    window,
	}
	seen := map[string]bool{}
	total := 0
	for _, c := range correlations {
		total += c.Confidence
		if !seen[c.Type] {
			seen[c.Type] = true
			s.TypesFound = append(s.TypesFound, c.Type)
		}
	}
	if len(correlations) > 0 {
		s.ConfidenceScore = total / len(correlations)
	}
	return s
}

func filterByReport(correlations []models.Correlation, reportID uuid.UUID) []models.Correlation {
	out := correlations[:0]
	for _, c := range correlations {
		for _, id := range c.RelatedReports {
			if id == reportID {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func validCorrelationType(t string) bool {
	switch t {
	case models.CorrelationErrorNetwork, models.CorrelationPerformanceResource,
		models.CorrelationTimingSequence, models.CorrelationPatternMatch:
		return true
	}
	return false
}

type validationError string

func (e validationError) Error() string { return string(e) }

func errValidation(msg string) error { return validationError(msg) }
