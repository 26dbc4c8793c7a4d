package analysis

import (
	"testing"

	"github.com/feedbacklens/feedbacklens/pkg/models"
)

func TestGenerateInsights_OnePerTypeBucket(t *testing.T) {
	correlations := []models.Correlation{
		{Type: models.CorrelationErrorNetwork, Confidence: 70},
		{Type: models.CorrelationErrorNetwork, Confidence: 65},
		{Type: models.CorrelationPerformanceResource, Confidence: 75},
	}

	got := GenerateInsights(correlations)
	if len(got) != 2 {
		t.Fatalf("expected 2 insights, got %d", len(got))
	}
	// Emission order is fixed: performance first.
	if got[0].Category != "performance" {
		t.Errorf("expected performance insight first, got %s", got[0].Category)
	}
	if got[1].Category != "network" {
		t.Errorf("expected network insight second, got %s", got[1].Category)
	}
	if got[1].AffectedCount != 2 {
		t.Errorf("expected affected count 2 for the network bucket, got %d", got[1].AffectedCount)
	}
}

func TestGenerateInsights_HighConfidenceExtra(t *testing.T) {
	correlations := []models.Correlation{
		{Type: models.CorrelationPatternMatch, Confidence: 95},
		{Type: models.CorrelationPatternMatch, Confidence: 81},
		{Type: models.CorrelationPatternMatch, Confidence: 80},
	}

	got := GenerateInsights(correlations)
	if len(got) != 2 {
		t.Fatalf("expected the pattern insight plus the high-confidence insight, got %d", len(got))
	}
	last := got[len(got)-1]
	if last.Title != "High-Confidence Error Correlations" {
		t.Errorf("expected high-confidence insight last, got %q", last.Title)
	}
	// Confidence 80 is at the cutoff, not past it.
	if last.AffectedCount != 2 {
		t.Errorf("expected 2 correlations past the cutoff, got %d", last.AffectedCount)
	}
}

func TestGenerateInsights_EmptyInput(t *testing.T) {
	got := GenerateInsights(nil)
	if len(got) != 0 {
		t.Fatalf("expected no insights for empty input, got %d", len(got))
	}
}

func TestGenerateInsights_TimingSequenceHasNoTemplate(t *testing.T) {
	// Cascades feed the correlation list but carry no standalone insight.
	correlations := []models.Correlation{
		{Type: models.CorrelationTimingSequence, Confidence: 75},
	}
	got := GenerateInsights(correlations)
	if len(got) != 0 {
		t.Fatalf("expected no insights, got %d", len(got))
	}
}
