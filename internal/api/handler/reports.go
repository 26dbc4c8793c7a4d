// Package handler contains the HTTP handlers for the FeedbackLens API.
// Handlers validate input, make a single store call, and shape the response;
// the analytical endpoints additionally run the in-memory detectors over the
// fetched report set.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/feedbacklens/feedbacklens/internal/api/middleware"
	"github.com/feedbacklens/feedbacklens/internal/api/response"
	"github.com/feedbacklens/feedbacklens/internal/storage"
	"github.com/feedbacklens/feedbacklens/internal/store"
	"github.com/feedbacklens/feedbacklens/pkg/models"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 10000
	maxAttachments    = 5
	maxReporterName   = 100
)

// NewListReportsHandler returns the handler for GET /projects/{projectID}/reports.
func NewListReportsHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}

		q := r.URL.Query()
		filter := store.ReportFilter{
			ProjectID: projectID,
			Type:      q.Get("type"),
			Status:    q.Get("status"),
			Priority:  q.Get("priority"),
			Search:    q.Get("search"),
			SortBy:    q.Get("sort_by"),
			SortOrder: q.Get("sort_order"),
		}

		if filter.Type != "" && !models.ValidReportType(filter.Type) {
			response.Error(w, r, response.CodeValidation, "type must be one of bug, initiative, feedback", nil)
			return
		}
		if filter.Priority != "" && !models.ValidPriority(filter.Priority) {
			response.Error(w, r, response.CodeValidation, "priority must be one of low, medium, high, critical", nil)
			return
		}

		var err error
		if filter.From, err = parseTimeParam(q.Get("date_from")); err != nil {
			response.Error(w, r, response.CodeValidation, "date_from must be a valid RFC3339 timestamp", nil)
			return
		}
		if filter.To, err = parseTimeParam(q.Get("date_to")); err != nil {
			response.Error(w, r, response.CodeValidation, "date_to must be a valid RFC3339 timestamp", nil)
			return
		}

		filter.Page, filter.Limit = parsePagination(q.Get("page"), q.Get("limit"))

		reports, total, err := s.ListReports(r.Context(), filter)
		if err != nil {
			response.Error(w, r, response.CodeInternal, "Failed to list reports", nil)
			return
		}
		if reports == nil {
			reports = []*models.Report{}
		}
		response.Collection(w, reports, response.NewPaginationMeta(filter.Page, filter.Limit, total))
	}
}

// NewGetReportHandler returns the handler for GET /projects/{projectID}/reports/{reportID}.
func NewGetReportHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}
		reportID, err := uuid.Parse(chi.URLParam(r, "reportID"))
		if err != nil {
			response.Error(w, r, response.CodeValidation, "Invalid report id", nil)
			return
		}

		report, err := s.GetReport(r.Context(), reportID, projectID)
		if err != nil {
			storeError(w, r, err, "report")
			return
		}
		response.JSON(w, report)
	}
}

type createReportRequest struct {
	Type          string      `json:"type"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Priority      string      `json:"priority"`
	ReporterName  *string     `json:"reporter_name"`
	ReporterEmail *string     `json:"reporter_email"`
	URL           *string     `json:"url"`
	AttachmentIDs []uuid.UUID `json:"attachment_ids"`
}

// validate applies the create-report rules shared by the dashboard and
// widget paths.
func (req *createReportRequest) validate() (string, bool) {
	if !models.ValidReportType(req.Type) {
		return "type must be one of bug, initiative, feedback", false
	}
	if l := len(req.Title); l < 1 || l > maxTitleLen {
		return "title must be between 1 and 200 characters", false
	}
	if l := len(req.Description); l < 1 || l > maxDescriptionLen {
		return "description must be between 1 and 10000 characters", false
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !models.ValidPriority(req.Priority) {
		return "priority must be one of low, medium, high, critical", false
	}
	if req.ReporterEmail != nil && *req.ReporterEmail != "" {
		if _, err := mail.ParseAddress(*req.ReporterEmail); err != nil {
			return "reporter_email must be a valid email address", false
		}
	}
	if req.ReporterName != nil && len(*req.ReporterName) > maxReporterName {
		return "reporter_name must be at most 100 characters", false
	}
	if len(req.AttachmentIDs) > maxAttachments {
		return "at most 5 attachments may be linked", false
	}
	return "", true
}

// NewCreateReportHandler returns the handler for POST /projects/{projectID}/reports.
func NewCreateReportHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}

		var req createReportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, r, response.CodeValidation, "Invalid JSON body", nil)
			return
		}
		if msg, ok := req.validate(); !ok {
			response.Error(w, r, response.CodeValidation, msg, nil)
			return
		}

		now := time.Now().UTC()
		report := &models.Report{
			ID:            uuid.New(),
			ProjectID:     projectID,
			Type:          req.Type,
			Title:         req.Title,
			Description:   req.Description,
			Status:        models.ReportStatusActive,
			Priority:      req.Priority,
			ReporterName:  req.ReporterName,
			ReporterEmail: req.ReporterEmail,
			URL:           req.URL,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := s.CreateReport(r.Context(), report); err != nil {
			storeError(w, r, err, "report")
			return
		}

		if len(req.AttachmentIDs) > 0 {
			if err := s.LinkAttachments(r.Context(), report.ID, projectID, req.AttachmentIDs); err != nil {
				if errors.Is(err, store.ErrConflict) {
					// The report row stays; the client can retry linking.
					response.Error(w, r, response.CodeConflict,
						"One or more attachments are already linked to another report", nil)
					return
				}
				response.Error(w, r, response.CodeInternal, "Failed to link attachments", nil)
				return
			}
		}

		response.Created(w, report)
	}
}

type updateReportRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
}

// NewUpdateReportHandler returns the handler for PATCH /projects/{projectID}/reports/{reportID}.
// Diagnostic blobs are immutable and not accepted here.
func NewUpdateReportHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}
		reportID, err := uuid.Parse(chi.URLParam(r, "reportID"))
		if err != nil {
			response.Error(w, r, response.CodeValidation, "Invalid report id", nil)
			return
		}

		var req updateReportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, r, response.CodeValidation, "Invalid JSON body", nil)
			return
		}

		var opts []store.ReportUpdateOption
		if req.Title != nil {
			if l := len(*req.Title); l < 1 || l > maxTitleLen {
				response.Error(w, r, response.CodeValidation, "title must be between 1 and 200 characters", nil)
				return
			}
			opts = append(opts, store.WithTitle(*req.Title))
		}
		if req.Description != nil {
			if l := len(*req.Description); l < 1 || l > maxDescriptionLen {
				response.Error(w, r, response.CodeValidation, "description must be between 1 and 10000 characters", nil)
				return
			}
			opts = append(opts, store.WithDescription(*req.Description))
		}
		if req.Status != nil {
			if *req.Status != models.ReportStatusActive && *req.Status != models.ReportStatusArchived {
				response.Error(w, r, response.CodeValidation, "status must be active or archived", nil)
				return
			}
			opts = append(opts, store.WithStatus(*req.Status))
		}
		if req.Priority != nil {
			if !models.ValidPriority(*req.Priority) {
				response.Error(w, r, response.CodeValidation, "priority must be one of low, medium, high, critical", nil)
				return
			}
			opts = append(opts, store.WithPriority(*req.Priority))
		}
		if len(opts) == 0 {
			response.Error(w, r, response.CodeValidation, "No updatable fields supplied", nil)
			return
		}

		report, err := s.UpdateReport(r.Context(), reportID, projectID, opts...)
		if err != nil {
			storeError(w, r, err, "report")
			return
		}
		response.JSON(w, report)
	}
}

// NewDeleteReportHandler returns the handler for DELETE /projects/{projectID}/reports/{reportID}.
// Diagnostic blobs go with the row; attachment objects are removed from the
// external store best-effort.
func NewDeleteReportHandler(s store.Store, objects storage.ObjectStorage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}
		reportID, err := uuid.Parse(chi.URLParam(r, "reportID"))
		if err != nil {
			response.Error(w, r, response.CodeValidation, "Invalid report id", nil)
			return
		}

		attachments, err := s.ListReportAttachments(r.Context(), reportID)
		if err == nil {
			for _, a := range attachments {
				_ = objects.Delete(r.Context(), a.ObjectKey)
			}
		}

		if err := s.DeleteReport(r.Context(), reportID, projectID); err != nil {
			storeError(w, r, err, "report")
			return
		}
		response.NoContent(w)
	}
}

// --- shared helpers ---

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func parsePagination(pageStr, limitStr string) (page, limit int) {
	page, _ = strconv.Atoi(pageStr)
	if page <= 0 {
		page = 1
	}
	limit, _ = strconv.Atoi(limitStr)
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

// storeError maps store sentinel errors to the uniform error payload.
func storeError(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, r, response.CodeNotFound, "Unknown "+what, nil)
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrDuplicateKey):
		response.Error(w, r, response.CodeConflict, "Conflicting "+what, nil)
	default:
		response.Error(w, r, response.CodeInternal, "An unexpected error occurred", nil)
	}
}
