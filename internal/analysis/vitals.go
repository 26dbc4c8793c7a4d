package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/feedbacklens/feedbacklens/pkg/models"
)

// Metric status values.
const (
	StatusGood             = "good"
	StatusNeedsImprovement = "needs_improvement"
	StatusPoor             = "poor"
)

// Severity buckets for the overall score.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// vitalThreshold holds the good and needs-improvement cutoffs for one metric.
// Values at or below Good are good; above NeedsImprovement is poor.
type vitalThreshold struct {
	Good             float64
	NeedsImprovement float64
}

var vitalThresholds = map[string]vitalThreshold{
	"fcp":  {Good: 1800, NeedsImprovement: 3000},
	"lcp":  {Good: 2500, NeedsImprovement: 4000},
	"cls":  {Good: 0.1, NeedsImprovement: 0.25},
	"fid":  {Good: 100, NeedsImprovement: 300},
	"tti":  {Good: 3800, NeedsImprovement: 7300},
	"ttfb": {Good: 800, NeedsImprovement: 1800},
}

var vitalWeights = map[string]float64{
	"lcp":  0.25,
	"cls":  0.25,
	"fid":  0.20,
	"fcp":  0.15,
	"tti":  0.10,
	"ttfb": 0.05,
}

var statusScores = map[string]float64{
	StatusGood:             90,
	StatusNeedsImprovement: 60,
	StatusPoor:             30,
}

// PerformanceAnalysis is the categorizer output for one vitals vector.
type PerformanceAnalysis struct {
	Category        string            `json:"category"`
	Score           float64           `json:"score"`
	Details         string            `json:"details"`
	MetricStatus    map[string]string `json:"metric_status"`
	Recommendations []string          `json:"recommendations,omitempty"`
}

// ClassifyMetric returns the status of a single named metric value.
// Unknown metric names are classified as good (no threshold to violate).
func ClassifyMetric(name string, value float64) string {
	th, ok := vitalThresholds[name]
	if !ok {
		return StatusGood
	}
	switch {
	case value <= th.Good:
		return StatusGood
	case value <= th.NeedsImprovement:
		return StatusNeedsImprovement
	default:
		return StatusPoor
	}
}

// CategorizeVitals maps a (possibly partial) Web Vitals vector to a weighted
// 0-100 score and a severity bucket. Weights of absent metrics are excluded
// and the denominator renormalized. An empty vector scores 0 and buckets low,
// read as "no data" rather than "critical".
func CategorizeVitals(v models.WebVitals) PerformanceAnalysis {
	present := presentMetrics(v)
	if len(present) == 0 {
		return PerformanceAnalysis{
			Category:     SeverityLow,
			Score:        0,
			Details:      "no performance data captured",
			MetricStatus: map[string]string{},
		}
	}

	status := make(map[string]string, len(present))
	var weighted, totalWeight float64
	for name, value := range present {
		st := ClassifyMetric(name, value)
		status[name] = st
		w := vitalWeights[name]
		weighted += statusScores[st] * w
		totalWeight += w
	}
	score := weighted / totalWeight

	return PerformanceAnalysis{
		Category:        scoreSeverity(score),
		Score:           score,
		Details:         vitalDetails(status),
		MetricStatus:    status,
		Recommendations: vitalRecommendations(status),
	}
}

func presentMetrics(v models.WebVitals) map[string]float64 {
	out := map[string]float64{}
	if v.FCP != nil {
		out["fcp"] = *v.FCP
	}
	if v.LCP != nil {
		out["lcp"] = *v.LCP
	}
	if v.CLS != nil {
		out["cls"] = *v.CLS
	}
	if v.FID != nil {
		out["fid"] = *v.FID
	}
	if v.TTI != nil {
		out["tti"] = *v.TTI
	}
	if v.TTFB != nil {
		out["ttfb"] = *v.TTFB
	}
	return out
}

func scoreSeverity(score float64) string {
	switch {
	case score >= 80:
		return SeverityLow
	case score >= 60:
		return SeverityMedium
	case score >= 40:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

func vitalDetails(status map[string]string) string {
	var poor, ni []string
	for _, name := range sortedKeys(status) {
		switch status[name] {
		case StatusPoor:
			poor = append(poor, strings.ToUpper(name))
		case StatusNeedsImprovement:
			ni = append(ni, strings.ToUpper(name))
		}
	}
	switch {
	case len(poor) > 0 && len(ni) > 0:
		return fmt.Sprintf("poor: %s; needs improvement: %s",
			strings.Join(poor, ", "), strings.Join(ni, ", "))
	case len(poor) > 0:
		return "poor: " + strings.Join(poor, ", ")
	case len(ni) > 0:
		return "needs improvement: " + strings.Join(ni, ", ")
	default:
		return "all captured metrics within good thresholds"
	}
}

var metricAdvice = map[string]string{
	"lcp":  "Optimize the largest above-the-fold element: compress hero images and preload critical resources.",
	"cls":  "Reserve space for images, ads, and embeds to avoid layout shifts during load.",
	"fid":  "Break up long main-thread tasks and defer non-critical JavaScript.",
	"fcp":  "Reduce render-blocking stylesheets and inline critical CSS.",
	"tti":  "Trim JavaScript bundle size and lazy-load below-the-fold features.",
	"ttfb": "Cache server responses or move content closer to users via a CDN.",
}

// vitalRecommendations returns advice for non-good metrics, worst first,
// capped at three entries.
func vitalRecommendations(status map[string]string) []string {
	var out []string
	for _, name := range sortedKeys(status) {
		if status[name] == StatusPoor {
			out = append(out, metricAdvice[name])
		}
	}
	for _, name := range sortedKeys(status) {
		if status[name] == StatusNeedsImprovement {
			out = append(out, metricAdvice[name])
		}
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
