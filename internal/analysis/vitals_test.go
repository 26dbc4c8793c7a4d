package analysis

import (
	"math"
	"testing"

	"github.com/feedbacklens/feedbacklens/pkg/models"
)

// --- ClassifyMetric tests ---

func TestClassifyMetric(t *testing.T) {
	tests := []struct {
		name     string
		metric   string
		value    float64
		expected string
	}{
		{name: "lcp at good threshold", metric: "lcp", value: 2500, expected: StatusGood},
		{name: "lcp just past good threshold", metric: "lcp", value: 2500.1, expected: StatusNeedsImprovement},
		{name: "lcp at needs-improvement threshold", metric: "lcp", value: 4000, expected: StatusNeedsImprovement},
		{name: "lcp past needs-improvement threshold", metric: "lcp", value: 4001, expected: StatusPoor},
		{name: "cls good", metric: "cls", value: 0.05, expected: StatusGood},
		{name: "cls needs improvement", metric: "cls", value: 0.2, expected: StatusNeedsImprovement},
		{name: "cls poor", metric: "cls", value: 0.3, expected: StatusPoor},
		{name: "fid good", metric: "fid", value: 80, expected: StatusGood},
		{name: "ttfb poor", metric: "ttfb", value: 2500, expected: StatusPoor},
		{name: "tti needs improvement", metric: "tti", value: 5000, expected: StatusNeedsImprovement},
		{name: "fcp good", metric: "fcp", value: 1200, expected: StatusGood},
		{name: "unknown metric defaults to good", metric: "bogus", value: 99999, expected: StatusGood},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyMetric(tt.metric, tt.value)
			if got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

// --- CategorizeVitals tests ---

func TestCategorizeVitals_EmptyVector(t *testing.T) {
	got := CategorizeVitals(models.WebVitals{})

	if got.Category != SeverityLow {
		t.Errorf("expected category %s for no data, got %s", SeverityLow, got.Category)
	}
	if got.Score != 0 {
		t.Errorf("expected score 0 for no data, got %f", got.Score)
	}
	if got.Details != "no performance data captured" {
		t.Errorf("unexpected details: %q", got.Details)
	}
}

func TestCategorizeVitals_AllGood(t *testing.T) {
	got := CategorizeVitals(models.WebVitals{
		FCP:  floatPtr(1000),
		LCP:  floatPtr(2000),
		CLS:  floatPtr(0.05),
		FID:  floatPtr(50),
		TTI:  floatPtr(3000),
		TTFB: floatPtr(500),
	})

	if got.Score != 90 {
		t.Errorf("expected score 90 when every metric is good, got %f", got.Score)
	}
	if got.Category != SeverityLow {
		t.Errorf("expected category %s, got %s", SeverityLow, got.Category)
	}
	if len(got.Recommendations) != 0 {
		t.Errorf("expected no recommendations for a healthy vector, got %v", got.Recommendations)
	}
}

func TestCategorizeVitals_AllPoor(t *testing.T) {
	got := CategorizeVitals(models.WebVitals{
		FCP:  floatPtr(9000),
		LCP:  floatPtr(9000),
		CLS:  floatPtr(1.0),
		FID:  floatPtr(800),
		TTI:  floatPtr(20000),
		TTFB: floatPtr(5000),
	})

	if got.Score != 30 {
		t.Errorf("expected score 30 when every metric is poor, got %f", got.Score)
	}
	if got.Category != SeverityCritical {
		t.Errorf("expected category %s, got %s", SeverityCritical, got.Category)
	}
	if len(got.Recommendations) == 0 {
		t.Error("expected recommendations for a failing vector")
	}
}

func TestCategorizeVitals_PartialVectorRenormalizes(t *testing.T) {
	// Only LCP present: its 0.25 weight becomes the whole denominator, so the
	// score is exactly the status score of that one metric.
	got := CategorizeVitals(models.WebVitals{LCP: floatPtr(3000)})

	if got.Score != 60 {
		t.Errorf("expected score 60 for a lone needs-improvement LCP, got %f", got.Score)
	}
	if got.Category != SeverityMedium {
		t.Errorf("expected category %s, got %s", SeverityMedium, got.Category)
	}
}

func TestCategorizeVitals_MixedVector(t *testing.T) {
	// lcp good (90 * 0.25) + cls poor (30 * 0.25) over weight 0.5 = 60.
	got := CategorizeVitals(models.WebVitals{
		LCP: floatPtr(2000),
		CLS: floatPtr(0.5),
	})

	if math.Abs(got.Score-60) > 1e-9 {
		t.Errorf("expected score 60, got %f", got.Score)
	}
	if got.MetricStatus["lcp"] != StatusGood {
		t.Errorf("expected lcp good, got %s", got.MetricStatus["lcp"])
	}
	if got.MetricStatus["cls"] != StatusPoor {
		t.Errorf("expected cls poor, got %s", got.MetricStatus["cls"])
	}
}

func TestCategorizeVitals_SeverityBuckets(t *testing.T) {
	tests := []struct {
		name     string
		vitals   models.WebVitals
		category string
	}{
		{
			name:     "all good lands low",
			vitals:   models.WebVitals{LCP: floatPtr(1000), CLS: floatPtr(0.01)},
			category: SeverityLow,
		},
		{
			name:     "needs improvement lands medium",
			vitals:   models.WebVitals{LCP: floatPtr(3000)},
			category: SeverityMedium,
		},
		{
			name: "mostly poor lands high",
			// lcp poor 30*0.25, cls good 90*0.25 over 0.5 = 60... boundary:
			// score 60 is medium, so use fid poor too.
			vitals:   models.WebVitals{LCP: floatPtr(5000), FID: floatPtr(400), CLS: floatPtr(0.05)},
			category: SeverityHigh,
		},
		{
			name:     "all poor lands critical",
			vitals:   models.WebVitals{LCP: floatPtr(5000), CLS: floatPtr(0.5)},
			category: SeverityCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeVitals(tt.vitals)
			if got.Category != tt.category {
				t.Errorf("expected category %s, got %s (score %f)", tt.category, got.Category, got.Score)
			}
		})
	}
}

func TestCategorizeVitals_Monotonic(t *testing.T) {
	// Worsening a single metric can never raise the score.
	improving := CategorizeVitals(models.WebVitals{LCP: floatPtr(2000), FID: floatPtr(50)})
	degraded := CategorizeVitals(models.WebVitals{LCP: floatPtr(5000), FID: floatPtr(50)})

	if degraded.Score > improving.Score {
		t.Errorf("degrading LCP raised the score: %f > %f", degraded.Score, improving.Score)
	}
}

func TestScoreSeverity_Boundaries(t *testing.T) {
	tests := []struct {
		score    float64
		expected string
	}{
		{score: 100, expected: SeverityLow},
		{score: 80, expected: SeverityLow},
		{score: 79.9, expected: SeverityMedium},
		{score: 60, expected: SeverityMedium},
		{score: 59.9, expected: SeverityHigh},
		{score: 40, expected: SeverityHigh},
		{score: 39.9, expected: SeverityCritical},
		{score: 0, expected: SeverityCritical},
	}

	for _, tt := range tests {
		got := scoreSeverity(tt.score)
		if got != tt.expected {
			t.Errorf("score %f: expected %s, got %s", tt.score, tt.expected, got)
		}
	}
}

func TestVitalRecommendations_PoorFirstCappedAtThree(t *testing.T) {
	status := map[string]string{
		"lcp":  StatusPoor,
		"cls":  StatusPoor,
		"fid":  StatusNeedsImprovement,
		"fcp":  StatusNeedsImprovement,
		"ttfb": StatusNeedsImprovement,
	}

	got := vitalRecommendations(status)
	if len(got) != 3 {
		t.Fatalf("expected recommendations capped at 3, got %d", len(got))
	}
}
