package handler

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	mw "github.com/feedbacklens/feedbacklens/internal/api/middleware"
	"github.com/feedbacklens/feedbacklens/internal/api/response"
	"github.com/feedbacklens/feedbacklens/internal/analysis"
	"github.com/feedbacklens/feedbacklens/internal/store"
	"github.com/feedbacklens/feedbacklens/pkg/models"
)

// performanceEntry is one report annotated with its categorization. The
// categorizer re-runs at read time so threshold changes apply to old rows.
type performanceEntry struct {
	ReportID  uuid.UUID        `json:"report_id"`
	Title     string           `json:"title"`
	URL       *string          `json:"url,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	Vitals    models.WebVitals `json:"vitals"`

	Category        string            `json:"category"`
	Score           float64           `json:"score"`
	MetricStatus    map[string]string `json:"metric_status"`
	Recommendations []string          `json:"recommendations,omitempty"`
}

type performanceStatistics struct {
	TotalReports int                `json:"total_reports"`
	Averages     map[string]float64 `json:"averages"`
	Distribution map[string]int     `json:"distribution"`
}

type performanceResponse struct {
	Reports    []performanceEntry      `json:"reports"`
	Statistics performanceStatistics   `json:"statistics"`
	Pagination response.PaginationMeta `json:"pagination"`
}

type vitalsFilter struct {
	maxima   map[string]float64
	category string
}

func (f vitalsFilter) matches(e performanceEntry) bool {
	if f.category != "" && e.Category != f.category {
		return false
	}
	for name, limit := range f.maxima {
		v, ok := vitalValue(e.Vitals, name)
		if !ok || v > limit {
			return false
		}
	}
	return true
}

// NewPerformanceHandler returns the handler for
// GET /projects/{projectID}/reports/performance. Reports without a captured
// vitals vector are excluded from both the listing and the statistics.
func NewPerformanceHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}

		q := r.URL.Query()

		from, to, _, err := analysisWindow(q.Get("time_window"), q.Get("date_from"), q.Get("date_to"))
		if err != nil {
			response.Error(w, r, response.CodeValidation, err.Error(), nil)
			return
		}

		filter := vitalsFilter{maxima: map[string]float64{}}
		for _, name := range []string{"fcp", "lcp", "cls", "fid", "tti", "ttfb"} {
			raw := q.Get(name + "_max")
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v < 0 {
				response.Error(w, r, response.CodeValidation, name+"_max must be a non-negative number", nil)
				return
			}
			filter.maxima[name] = v
		}
		if c := q.Get("category"); c != "" {
			if !models.ValidPriority(c) {
				response.Error(w, r, response.CodeValidation, "category must be one of low, medium, high, critical", nil)
				return
			}
			filter.category = c
		}

		reports, err := s.ListReportsInWindow(r.Context(), projectID, from, to)
		if err != nil {
			response.Error(w, r, response.CodeInternal, "Failed to load reports", nil)
			return
		}

		entries := []performanceEntry{}
		for _, rep := range reports {
			if rep.PerformanceMetrics == nil {
				continue
			}
			pa := analysis.CategorizeVitals(rep.PerformanceMetrics.WebVitals)
			e := performanceEntry{
				ReportID:        rep.ID,
				Title:           rep.Title,
				URL:             rep.URL,
				CreatedAt:       rep.CreatedAt,
				Vitals:          rep.PerformanceMetrics.WebVitals,
				Category:        pa.Category,
				Score:           pa.Score,
				MetricStatus:    pa.MetricStatus,
				Recommendations: pa.Recommendations,
			}
			if filter.matches(e) {
				entries = append(entries, e)
			}
		}

		sortBy := q.Get("sort_by")
		if sortBy == "" {
			sortBy = "score"
		}
		if !validPerformanceSort(sortBy) {
			response.Error(w, r, response.CodeValidation, "sort_by must be score, created_at, or a vitals metric name", nil)
			return
		}
		descending := q.Get("sort_order") == "desc"

		sortEntries(entries, sortBy, descending)

		stats := computeStatistics(entries)

		page, limit := parsePagination(q.Get("page"), q.Get("limit"))
		paged := pageEntries(entries, page, limit)

		response.Document(w, performanceResponse{
			Reports:    paged,
			Statistics: stats,
			Pagination: response.NewPaginationMeta(page, limit, len(entries)),
		})
	}
}

// computeStatistics averages each metric over the entries that carry it
// and counts entries per severity bucket.
func computeStatistics(entries []performanceEntry) performanceStatistics {
	sums := map[string]float64{}
	counts := map[string]int{}
	dist := map[string]int{}

	for _, e := range entries {
		dist[e.Category]++
		for _, name := range []string{"fcp", "lcp", "cls", "fid", "tti", "ttfb"} {
			if v, ok := vitalValue(e.Vitals, name); ok {
				sums[name] += v
				counts[name]++
			}
		}
	}

	averages := map[string]float64{}
	for name, sum := range sums {
		averages[name] = sum / float64(counts[name])
	}
	return performanceStatistics{TotalReports: len(entries), Averages: averages, Distribution: dist}
}

func validPerformanceSort(sortBy string) bool {
	switch sortBy {
	case "score", "created_at", "fcp", "lcp", "cls", "fid", "tti", "ttfb":
		return true
	}
	return false
}

// sortEntries orders the annotated listing. The default is worst score
// first with recency breaking ties; metric sorts push entries missing that
// metric to the end regardless of direction.
func sortEntries(entries []performanceEntry, sortBy string, descending bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		switch sortBy {
		case "created_at":
			if descending {
				return entries[i].CreatedAt.After(entries[j].CreatedAt)
			}
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		case "score":
			if entries[i].Score != entries[j].Score {
				if descending {
					return entries[i].Score > entries[j].Score
				}
				return entries[i].Score < entries[j].Score
			}
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		default:
			vi, iok := vitalValue(entries[i].Vitals, sortBy)
			vj, jok := vitalValue(entries[j].Vitals, sortBy)
			if iok != jok {
				return iok
			}
			if !iok {
				return false
			}
			if descending {
				return vi > vj
			}
			return vi < vj
		}
	})
}

func pageEntries(entries []performanceEntry, page, limit int) []performanceEntry {
	offset := (page - 1) * limit
	if offset >= len(entries) {
		return []performanceEntry{}
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end]
}

func vitalValue(v models.WebVitals, name string) (float64, bool) {
	var p *float64
	switch name {
	case "fcp":
		p = v.FCP
	case "lcp":
		p = v.LCP
	case "cls":
		p = v.CLS
	case "fid":
		p = v.FID
	case "tti":
		p = v.TTI
	case "ttfb":
		p = v.TTFB
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}
