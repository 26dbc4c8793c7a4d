package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	mw "github.com/feedbacklens/feedbacklens/internal/api/middleware"
	"github.com/feedbacklens/feedbacklens/internal/api/response"
	"github.com/feedbacklens/feedbacklens/internal/analysis"
	"github.com/feedbacklens/feedbacklens/internal/payload"
	"github.com/feedbacklens/feedbacklens/internal/store"
	"github.com/feedbacklens/feedbacklens/pkg/models"
)

// maxWidgetBody caps the raw request body before any decompression.
const maxWidgetBody = 16 << 20

// flexibleJSON accepts a value that is either inline JSON or a JSON string
// containing JSON. Older widget builds serialize each diagnostic bundle
// separately and embed it as a string field.
type flexibleJSON struct {
	raw json.RawMessage
}

func (f *flexibleJSON) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		f.raw = json.RawMessage(inner)
		return nil
	}
	f.raw = json.RawMessage(data)
	return nil
}

func (f *flexibleJSON) decode(v any) error {
	if len(f.raw) == 0 || bytes.Equal(f.raw, []byte("null")) {
		return nil
	}
	return json.Unmarshal(f.raw, v)
}

type widgetSubmitRequest struct {
	Type               string        `json:"type"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	Priority           string        `json:"priority"`
	ReporterName       *string       `json:"reporter_name"`
	ReporterEmail      *string       `json:"reporter_email"`
	URL                *string       `json:"url"`
	UserAgent          *string       `json:"user_agent"`
	ConsoleLogs        *flexibleJSON `json:"console_logs"`
	NetworkRequests    *flexibleJSON `json:"network_requests"`
	PerformanceMetrics *flexibleJSON `json:"performance_metrics"`
	ErrorContext       *flexibleJSON `json:"error_context"`
	InteractionData    *flexibleJSON `json:"interaction_data"`
}

// NewWidgetSubmitHandler returns the handler for POST /widget/reports. The
// project is resolved by the integration-key middleware; the handler decodes
// the (optionally gzipped) bundle, runs the vitals categorizer, and trims the
// diagnostic payload down to the configured budget before persisting.
func NewWidgetSubmitHandler(s store.Store, budgetBytes int) http.HandlerFunc {
	if budgetBytes <= 0 {
		budgetBytes = payload.DefaultMaxBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}

		body := io.Reader(http.MaxBytesReader(w, r.Body, maxWidgetBody))
		if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
			gz, err := gzip.NewReader(body)
			if err != nil {
				response.Error(w, r, response.CodeValidation, "Invalid gzip body", nil)
				return
			}
			defer gz.Close()
			body = gz
		}

		var req widgetSubmitRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			response.Error(w, r, response.CodeValidation, "Invalid JSON body", nil)
			return
		}

		base := createReportRequest{
			Type:          req.Type,
			Title:         req.Title,
			Description:   req.Description,
			Priority:      req.Priority,
			ReporterName:  req.ReporterName,
			ReporterEmail: req.ReporterEmail,
		}
		if msg, ok := base.validate(); !ok {
			response.Error(w, r, response.CodeValidation, msg, nil)
			return
		}

		var console []models.ConsoleLogEntry
		if err := req.ConsoleLogs.decodeInto(&console); err != nil {
			response.Error(w, r, response.CodeValidation, "console_logs is not a valid log array", nil)
			return
		}
		var network []models.NetworkRequest
		if err := req.NetworkRequests.decodeInto(&network); err != nil {
			response.Error(w, r, response.CodeValidation, "network_requests is not a valid request array", nil)
			return
		}
		var vitals models.WebVitals
		if err := req.PerformanceMetrics.decodeInto(&vitals); err != nil {
			response.Error(w, r, response.CodeValidation, "performance_metrics is not a valid metrics object", nil)
			return
		}
		var errCtx *models.ErrorContext
		if req.ErrorContext != nil {
			var ec models.ErrorContext
			if err := req.ErrorContext.decode(&ec); err != nil {
				response.Error(w, r, response.CodeValidation, "error_context is not a valid object", nil)
				return
			}
			errCtx = &ec
		}

		interaction, err := consentedInteraction(req.InteractionData)
		if err != nil {
			response.Error(w, r, response.CodeValidation,
				"interaction_data requires consent to be true", nil)
			return
		}

		if estimated := rawSize(req); estimated > budgetBytes {
			console, network = payload.Optimize(console, network, budgetBytes)
		}

		var perf *models.PerformanceMetrics
		if hasVitals(vitals) {
			pa := analysis.CategorizeVitals(vitals)
			score := pa.Score
			perf = &models.PerformanceMetrics{
				WebVitals: vitals,
				Category:  pa.Category,
				Score:     &score,
			}
		}

		now := time.Now().UTC()
		report := &models.Report{
			ID:                 uuid.New(),
			ProjectID:          projectID,
			Type:               base.Type,
			Title:              base.Title,
			Description:        base.Description,
			Status:             models.ReportStatusActive,
			Priority:           base.Priority,
			ReporterName:       base.ReporterName,
			ReporterEmail:      base.ReporterEmail,
			URL:                req.URL,
			UserAgent:          req.UserAgent,
			ConsoleLogs:        console,
			NetworkRequests:    network,
			PerformanceMetrics: perf,
			ErrorContext:       errCtx,
			InteractionData:    interaction,
			CreatedAt:          now,
			UpdatedAt:          now,
		}

		if err := s.CreateReport(r.Context(), report); err != nil {
			storeError(w, r, err, "report")
			return
		}
		response.Created(w, map[string]any{
			"id":         report.ID,
			"created_at": report.CreatedAt,
		})
	}
}

// decodeInto is decode with a nil receiver treated as absent.
func (f *flexibleJSON) decodeInto(v any) error {
	if f == nil {
		return nil
	}
	return f.decode(v)
}

// consentedInteraction returns the interaction blob only when it carries an
// explicit consent flag. Any payload without it is rejected outright rather
// than silently dropped, so widget misconfigurations surface immediately.
func consentedInteraction(f *flexibleJSON) (json.RawMessage, error) {
	if f == nil || len(f.raw) == 0 || bytes.Equal(f.raw, []byte("null")) {
		return nil, nil
	}
	var probe struct {
		Consent bool `json:"consent"`
	}
	if err := json.Unmarshal(f.raw, &probe); err != nil || !probe.Consent {
		return nil, errMissingConsent
	}
	return f.raw, nil
}

var errMissingConsent = &consentError{}

type consentError struct{}

func (*consentError) Error() string { return "interaction data submitted without consent" }

func hasVitals(v models.WebVitals) bool {
	return v.FCP != nil || v.LCP != nil || v.CLS != nil ||
		v.FID != nil || v.TTI != nil || v.TTFB != nil
}

// rawSize measures the diagnostic portion of the request as it would be
// stored. Cheap relative to the store round trip that follows.
func rawSize(req widgetSubmitRequest) int {
	n := 0
	for _, f := range []*flexibleJSON{req.ConsoleLogs, req.NetworkRequests, req.PerformanceMetrics, req.ErrorContext, req.InteractionData} {
		if f != nil {
			n += len(f.raw)
		}
	}
	return n
}
