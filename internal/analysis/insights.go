package analysis

import (
	"github.com/feedbacklens/feedbacklens/pkg/models"
)

const highConfidenceCutoff = 80

// Fixed recommendation text keyed by detector type. Template text, not
// derived analysis.
var insightTemplates = map[string]models.CorrelationInsight{
	models.CorrelationPerformanceResource: {
		Category:       "performance",
		Title:          "Resource Loading Issues",
		Description:    "Slow resource loads are degrading page performance for some reporters.",
		Impact:         "high",
		Recommendation: "Audit the slow resources listed in the correlations: enable compression, caching, or a CDN for the worst offenders.",
	},
	models.CorrelationPatternMatch: {
		Category:       "errors",
		Title:          "Recurring Error Patterns",
		Description:    "The same error signature appears across multiple reports.",
		Impact:         "medium",
		Recommendation: "Prioritize a fix for the recurring signature; a single change is likely to resolve several reports at once.",
	},
	models.CorrelationErrorNetwork: {
		Category:       "network",
		Title:          "Network-Related Errors",
		Description:    "Errors are landing close in time to network requests, suggesting failed or slow calls as the trigger.",
		Impact:         "medium",
		Recommendation: "Add error handling and retries around the request endpoints named in the evidence.",
	},
}

// insightOrder fixes the emission order of per-type insights.
var insightOrder = []string{
	models.CorrelationPerformanceResource,
	models.CorrelationPatternMatch,
	models.CorrelationErrorNetwork,
}

// GenerateInsights reduces a correlation set to at most one insight per
// non-empty type bucket, plus a high-confidence insight when any correlation
// exceeds the cutoff.
func GenerateInsights(correlations []models.Correlation) []models.CorrelationInsight {
	counts := make(map[string]int)
	highConfidence := 0
	for _, c := range correlations {
		counts[c.Type]++
		if c.Confidence > highConfidenceCutoff {
			highConfidence++
		}
	}

	insights := []models.CorrelationInsight{}
	for _, typ := range insightOrder {
		n := counts[typ]
		if n == 0 {
			continue
		}
		insight := insightTemplates[typ]
		insight.AffectedCount = n
		insights = append(insights, insight)
	}

	if highConfidence > 0 {
		insights = append(insights, models.CorrelationInsight{
			Category:       "errors",
			Title:          "High-Confidence Error Correlations",
			Description:    "One or more correlations exceed the high-confidence threshold.",
			Impact:         "high",
			Recommendation: "Start triage with the highest-confidence correlations; they are the most likely causal links.",
			AffectedCount:  highConfidence,
		})
	}
	return insights
}
