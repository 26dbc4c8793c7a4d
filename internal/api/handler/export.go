package handler

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	mw "github.com/feedbacklens/feedbacklens/internal/api/middleware"
	"github.com/feedbacklens/feedbacklens/internal/api/response"
	"github.com/feedbacklens/feedbacklens/internal/store"
	"github.com/feedbacklens/feedbacklens/pkg/models"
)

// exportMaxRows caps a single export. Larger projects should narrow the
// window with date_from/date_to.
const exportMaxRows = 10000

var csvHeader = []string{
	"id", "type", "title", "description", "status", "priority",
	"reporter_name", "reporter_email", "url",
	"console_log_count", "network_request_count", "error_count",
	"performance_category", "performance_score",
	"created_at", "updated_at",
}

// NewExportReportsHandler returns the handler for GET /projects/{projectID}/reports/export.
// It accepts the same filters as the report listing plus format=json|csv.
func NewExportReportsHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}

		q := r.URL.Query()
		format := q.Get("format")
		if format == "" {
			format = "json"
		}
		if format != "json" && format != "csv" {
			response.Error(w, r, response.CodeValidation, "format must be json or csv", nil)
			return
		}

		filter := store.ReportFilter{
			ProjectID: projectID,
			Type:      q.Get("type"),
			Status:    q.Get("status"),
			Priority:  q.Get("priority"),
			Search:    q.Get("search"),
			SortBy:    "created_at",
			SortOrder: "asc",
			Limit:     100,
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

		var all []*models.Report
		for page := 1; len(all) < exportMaxRows; page++ {
			filter.Page = page
			reports, total, err := s.ListReports(r.Context(), filter)
			if err != nil {
				response.Error(w, r, response.CodeInternal, "Failed to export reports", nil)
				return
			}
			all = append(all, reports...)
			if len(all) >= total || len(reports) == 0 {
				break
			}
		}
		if len(all) > exportMaxRows {
			all = all[:exportMaxRows]
		}

		filename := fmt.Sprintf("reports-%s.%s", time.Now().UTC().Format("2006-01-02"), format)
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

		if format == "csv" {
			writeCSV(w, all)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(all)
	}
}

func writeCSV(w http.ResponseWriter, reports []*models.Report) {
	w.Header().Set("Content-Type", "text/csv")
	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)

	for _, r := range reports {
		errorCount := 0
		if r.ErrorContext != nil {
			errorCount = r.ErrorContext.TotalErrorCount
		}
		var perfCategory, perfScore string
		if r.PerformanceMetrics != nil {
			perfCategory = r.PerformanceMetrics.Category
			if r.PerformanceMetrics.Score != nil {
				perfScore = strconv.FormatFloat(*r.PerformanceMetrics.Score, 'f', 1, 64)
			}
		}
		_ = cw.Write([]string{
			r.ID.String(), r.Type, r.Title, r.Description, r.Status, r.Priority,
			deref(r.ReporterName), deref(r.ReporterEmail), deref(r.URL),
			strconv.Itoa(len(r.ConsoleLogs)), strconv.Itoa(len(r.NetworkRequests)), strconv.Itoa(errorCount),
			perfCategory, perfScore,
			r.CreatedAt.Format(time.RFC3339), r.UpdatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
