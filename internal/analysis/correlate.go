// Package analysis implements the read-path analytics over stored report
// sets: the correlation engine, pattern detection, insight generation, and
// Web Vitals categorization. Everything here is a pure function of the
// already-fetched rows; no I/O happens inside this package.
package analysis

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/feedbacklens/feedbacklens/pkg/models"
)

// Detection windows and thresholds.
const (
	errorNetworkWindowMs   = 5000
	cascadeWindowMs        = 2000
	poorLCPThresholdMs     = 4000
	slowRequestThresholdMs = 1000
)

// errorPattern is one entry in the fixed error-message pattern library.
type errorPattern struct {
	name        string
	description string
	re          *regexp.Regexp
}

var errorPatterns = []errorPattern{
	{
		name:        "undefined_property_access",
		description: "Property access on an undefined object",
		re:          regexp.MustCompile(`(?i)cannot read propert(?:y|ies)(?: '[^']+')? of undefined`),
	},
	{
		name:        "not_a_function",
		description: "Call of a value that is not a function",
		re:          regexp.MustCompile(`(?i)typeerror: .* is not a function`),
	},
	{
		name:        "undefined_reference",
		description: "Reference to an undefined identifier",
		re:          regexp.MustCompile(`(?i)referenceerror: .* is not defined`),
	},
	{
		name:        "network_failure",
		description: "Generic network request failure",
		re:          regexp.MustCompile(`(?i)(failed to fetch|networkerror|network error|err_[a-z_]+)`),
	},
}

// CorrelateParams controls filtering of the detector output.
type CorrelateParams struct {
	// MinConfidence drops correlations below this value. Zero means the
	// default of 50.
	MinConfidence int
	// Types restricts output to the given correlation types when non-empty.
	Types []string
}

// DefaultMinConfidence is applied when CorrelateParams.MinConfidence is zero.
const DefaultMinConfidence = 50

// Correlate runs all four detectors over the report set, concatenates their
// output, filters by confidence and type, and returns the result sorted by
// confidence descending. The sort is stable, so ties keep detector emission
// order. Reports with missing diagnostic blobs are skipped by the detectors
// that need those blobs; nothing here returns an error.
func Correlate(reports []models.Report, params CorrelateParams) []models.Correlation {
	minConfidence := params.MinConfidence
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}

	var all []models.Correlation
	all = append(all, detectErrorNetwork(reports)...)
	all = append(all, detectPerformanceResource(reports)...)
	all = append(all, detectTimingSequence(reports)...)
	all = append(all, detectPatternMatch(reports)...)

	filtered := all[:0]
	for _, c := range all {
		if c.Confidence < minConfidence {
			continue
		}
		if len(params.Types) > 0 && !containsString(params.Types, c.Type) {
			continue
		}
		filtered = append(filtered, c)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Confidence > filtered[j].Confidence
	})
	return filtered
}

// detectErrorNetwork pairs every unhandled error with every network request
// in the same report and emits a correlation when they fall within 5 seconds
// of each other. Quadratic per report; acceptable because callers pre-filter
// to a bounded time window.
func detectErrorNetwork(reports []models.Report) []models.Correlation {
	var out []models.Correlation
	for _, r := range reports {
		if r.ErrorContext == nil || len(r.NetworkRequests) == 0 {
			continue
		}
		for _, e := range r.ErrorContext.UnhandledErrors {
			for _, nr := range r.NetworkRequests {
				deltaMs := absInt64(e.Timestamp - nr.Timestamp)
				if deltaMs >= errorNetworkWindowMs {
					continue
				}
				confidence := clampMin(int(math.Round(90-5*float64(deltaMs)/1000)), 50)
				out = append(out, models.Correlation{
					ID:          uuid.New(),
					Type:        models.CorrelationErrorNetwork,
					Confidence:  confidence,
					Description: fmt.Sprintf("Error occurred within %dms of a %s request to %s", deltaMs, nr.Method, truncate(nr.URL, 150)),
					Evidence: []string{
						fmt.Sprintf("error: %s", truncate(e.Message, 200)),
						fmt.Sprintf("request: %s %s (status %d, %.0fms)", nr.Method, truncate(nr.URL, 150), nr.Status, nr.Duration),
					},
					Timeline: []models.TimelineEvent{
						{Timestamp: nr.Timestamp, Kind: "network", Detail: truncate(nr.URL, 150)},
						{Timestamp: e.Timestamp, Kind: "error", Detail: truncate(e.Message, 200)},
					},
					RelatedReports: []uuid.UUID{r.ID},
					FirstSeen:      r.CreatedAt,
					LastSeen:       r.CreatedAt,
					Frequency:      1,
				})
			}
		}
	}
	return out
}

// detectPerformanceResource flags reports whose LCP is past the poor
// threshold while at least one request ran slow. One correlation per report.
func detectPerformanceResource(reports []models.Report) []models.Correlation {
	var out []models.Correlation
	for _, r := range reports {
		pm := r.PerformanceMetrics
		if pm == nil || pm.LCP == nil || *pm.LCP <= poorLCPThresholdMs {
			continue
		}
		var slow []models.NetworkRequest
		for _, nr := range r.NetworkRequests {
			if nr.Duration > slowRequestThresholdMs {
				slow = append(slow, nr)
			}
		}
		if len(slow) == 0 {
			continue
		}
		confidence := clampMax(60+10*len(slow), 95)
		evidence := []string{fmt.Sprintf("LCP %.0fms exceeds the 4000ms poor threshold", *pm.LCP)}
		for _, nr := range slow {
			evidence = append(evidence, fmt.Sprintf("slow request: %s (%.0fms)", truncate(nr.URL, 150), nr.Duration))
		}
		out = append(out, models.Correlation{
			ID:             uuid.New(),
			Type:           models.CorrelationPerformanceResource,
			Confidence:     confidence,
			Description:    fmt.Sprintf("Poor LCP coincides with %d slow resource(s)", len(slow)),
			Evidence:       evidence,
			RelatedReports: []uuid.UUID{r.ID},
			FirstSeen:      r.CreatedAt,
			LastSeen:       r.CreatedAt,
			Frequency:      1,
		})
	}
	return out
}

// detectTimingSequence finds cascades: adjacent error-level console entries
// within 2 seconds of each other inside a single report.
func detectTimingSequence(reports []models.Report) []models.Correlation {
	var out []models.Correlation
	for _, r := range reports {
		var errs []models.ConsoleLogEntry
		for _, entry := range r.ConsoleLogs {
			if entry.Level == "error" {
				errs = append(errs, entry)
			}
		}
		for i := 1; i < len(errs); i++ {
			deltaMs := absInt64(errs[i].Timestamp - errs[i-1].Timestamp)
			if deltaMs >= cascadeWindowMs {
				continue
			}
			confidence := clampMin(int(math.Round(85-10*float64(deltaMs)/1000)), 60)
			out = append(out, models.Correlation{
				ID:          uuid.New(),
				Type:        models.CorrelationTimingSequence,
				Confidence:  confidence,
				Description: fmt.Sprintf("Error cascade: two errors within %dms", deltaMs),
				Evidence: []string{
					fmt.Sprintf("first: %s", truncate(errs[i-1].Message, 200)),
					fmt.Sprintf("second: %s", truncate(errs[i].Message, 200)),
				},
				Timeline: []models.TimelineEvent{
					{Timestamp: errs[i-1].Timestamp, Kind: "error", Detail: truncate(errs[i-1].Message, 200)},
					{Timestamp: errs[i].Timestamp, Kind: "error", Detail: truncate(errs[i].Message, 200)},
				},
				RelatedReports: []uuid.UUID{r.ID},
				FirstSeen:      r.CreatedAt,
				LastSeen:       r.CreatedAt,
				Frequency:      1,
			})
		}
	}
	return out
}

// detectPatternMatch runs every unhandled-error message across the whole
// report set through the fixed pattern library and emits one correlation per
// pattern that matches at least twice.
func detectPatternMatch(reports []models.Report) []models.Correlation {
	type patternState struct {
		count     int
		reports   []uuid.UUID
		seen      map[uuid.UUID]bool
		firstSeen time.Time
		lastSeen  time.Time
	}
	states := make(map[string]*patternState)

	for _, r := range reports {
		if r.ErrorContext == nil {
			continue
		}
		for _, e := range r.ErrorContext.UnhandledErrors {
			for _, p := range errorPatterns {
				if !p.re.MatchString(e.Message) {
					continue
				}
				st, ok := states[p.name]
				if !ok {
					st = &patternState{seen: map[uuid.UUID]bool{}, firstSeen: r.CreatedAt, lastSeen: r.CreatedAt}
					states[p.name] = st
				}
				st.count++
				if !st.seen[r.ID] {
					st.seen[r.ID] = true
					st.reports = append(st.reports, r.ID)
				}
				if r.CreatedAt.Before(st.firstSeen) {
					st.firstSeen = r.CreatedAt
				}
				if r.CreatedAt.After(st.lastSeen) {
					st.lastSeen = r.CreatedAt
				}
			}
		}
	}

	var out []models.Correlation
	for _, p := range errorPatterns {
		st, ok := states[p.name]
		if !ok || st.count < 2 {
			continue
		}
		out = append(out, models.Correlation{
			ID:             uuid.New(),
			Type:           models.CorrelationPatternMatch,
			Confidence:     clampMax(50+15*st.count, 95),
			Description:    fmt.Sprintf("%s recurring across %d report(s)", p.description, len(st.reports)),
			Evidence:       []string{fmt.Sprintf("pattern %q matched %d time(s)", p.name, st.count)},
			RelatedReports: st.reports,
			Pattern:        p.name,
			FirstSeen:      st.firstSeen,
			LastSeen:       st.lastSeen,
			Frequency:      st.count,
		})
	}
	return out
}

// Paginate slices the sorted correlation set after full computation.
func Paginate(corrs []models.Correlation, offset, limit int) []models.Correlation {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(corrs) {
		return []models.Correlation{}
	}
	end := offset + limit
	if limit <= 0 || end > len(corrs) {
		end = len(corrs)
	}
	return corrs[offset:end]
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func clampMax(v, max int) int {
	if v > max {
		return max
	}
	return v
}

// truncate shortens s to maxBytes without splitting UTF-8 runes.
func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
