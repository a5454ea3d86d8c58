package insights

import (
	"testing"

	"github.com/lirany1/cucumber-insights/pkg/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reasons(names ...string) []analytics.ReasonSummary {
	out := make([]analytics.ReasonSummary, len(names))
	for i, n := range names {
		out[i] = analytics.ReasonSummary{Reason: n, Count: len(names) - i}
	}
	return out
}

func TestRecommendationsFirstMatchWins(t *testing.T) {
	recs := Recommendations(reasons("DbTimeoutError", "java.lang.AssertionError", "NoSuchElementError"), DefaultHints())

	require.Len(t, recs, 2)
	// matches both timeout and db; timeout comes first
	assert.Equal(t, "DbTimeoutError", recs[0].Reason)
	assert.Contains(t, recs[0].Suggestion, "Increase timeouts")
	assert.Equal(t, "java.lang.AssertionError", recs[1].Reason)
	assert.Contains(t, recs[1].Suggestion, "Verify expected values")
}

func TestRecommendationsDeduplicateByReason(t *testing.T) {
	recs := Recommendations(reasons("TimeoutError", "TimeoutError"), DefaultHints())
	assert.Len(t, recs, 1)
}

func TestRecommendationsGenericFallback(t *testing.T) {
	recs := Recommendations(reasons("Something odd", "Another"), DefaultHints())
	assert.Equal(t, []Recommendation{{Reason: "Something odd", Suggestion: GenericSuggestion}}, recs)

	assert.Empty(t, Recommendations(nil, DefaultHints()))
}

func TestDefaultHintsAreFresh(t *testing.T) {
	hints := DefaultHints()
	hints[0].Suggestion = "changed"
	assert.NotEqual(t, "changed", DefaultHints()[0].Suggestion)
}

func TestHealthStatus(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{100, HealthExcellent},
		{95, HealthExcellent},
		{94.9, HealthGood},
		{85, HealthGood},
		{70, HealthFair},
		{69.9, HealthPoor},
		{0, HealthPoor},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HealthStatus(tt.rate), "rate %.1f", tt.rate)
	}
}

func TestSummarize(t *testing.T) {
	analysis := &analytics.Analysis{
		TopReasons:        reasons("TimeoutError"),
		RecurringFailures: []analytics.RecurringFailure{{Test: "t1", Occurrences: 2}},
	}

	summary := Summarize(10, 2, 70, analysis)

	assert.Equal(t, HealthFair, summary.HealthStatus)
	assert.Equal(t, []string{
		"2 test(s) failed out of 10 total",
		"Single root cause identified - focused fix possible",
		"1 test(s) failed in more than one report file",
	}, summary.KeyInsights)
	assert.Contains(t, summary.Recommendation, "recurring failures")
}

func TestSummarizeAllPassed(t *testing.T) {
	summary := Summarize(5, 0, 100, &analytics.Analysis{})

	assert.Equal(t, HealthExcellent, summary.HealthStatus)
	assert.Equal(t, []string{"All tests passed successfully - no failures detected"}, summary.KeyInsights)
	assert.Contains(t, summary.Recommendation, "Continue maintaining")
}
