package analysis

import (
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/feedbacklens/feedbacklens/pkg/models"
)

// DetectPatterns groups reports that carry errors by the path component of
// their page URL. Any path contributed to by at least two reports becomes a
// pattern entry. Runs independently of the correlation engine over the same
// report set.
func DetectPatterns(reports []models.Report) []models.ErrorPattern {
	type pathState struct {
		reports   []uuid.UUID
		firstSeen time.Time
		lastSeen  time.Time
	}
	groups := make(map[string]*pathState)

	for _, r := range reports {
		if r.ErrorContext == nil || r.ErrorContext.TotalErrorCount == 0 || r.URL == nil {
			continue
		}
		path := urlPath(*r.URL)
		if path == "" {
			continue
		}
		st, ok := groups[path]
		if !ok {
			st = &pathState{firstSeen: r.CreatedAt, lastSeen: r.CreatedAt}
			groups[path] = st
		}
		st.reports = append(st.reports, r.ID)
		if r.CreatedAt.Before(st.firstSeen) {
			st.firstSeen = r.CreatedAt
		}
		if r.CreatedAt.After(st.lastSeen) {
			st.lastSeen = r.CreatedAt
		}
	}

	patterns := make([]models.ErrorPattern, 0, len(groups))
	for path, st := range groups {
		if len(st.reports) < 2 {
			continue
		}
		patterns = append(patterns, models.ErrorPattern{
			Type:            "url_cluster",
			Description:     fmt.Sprintf("%d reports with errors on %s", len(st.reports), path),
			Occurrences:     len(st.reports),
			AffectedReports: st.reports,
			FirstSeen:       st.firstSeen,
			LastSeen:        st.lastSeen,
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Occurrences != patterns[j].Occurrences {
			return patterns[i].Occurrences > patterns[j].Occurrences
		}
		return patterns[i].Description < patterns[j].Description
	})
	return patterns
}

// urlPath extracts the path component of a stored page URL. Unparseable
// URLs yield an empty string and the report is skipped.
func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
