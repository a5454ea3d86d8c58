// Package insights turns a failure analysis into health labels and
// remediation suggestions.
package insights

import (
	"fmt"
	"regexp"

	"github.com/lirany1/cucumber-insights/pkg/analytics"
)

// GenericSuggestion is offered for the top reason when no hint matches
const GenericSuggestion = "Inspect top failure traces and prioritize tests by business impact."

// Health labels by pass rate
const (
	HealthExcellent = "Excellent"
	HealthGood      = "Good"
	HealthFair      = "Fair"
	HealthPoor      = "Poor"
)

// Hint maps a reason pattern to a remediation suggestion
type Hint struct {
	Pattern    *regexp.Regexp
	Suggestion string
}

// Recommendation is the suggestion chosen for one failure reason
type Recommendation struct {
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion"`
}

// ExecutiveSummary contains high-level insights
type ExecutiveSummary struct {
	HealthStatus   string   `json:"healthStatus"`
	KeyInsights    []string `json:"keyInsights"`
	Recommendation string   `json:"recommendation"`
}

// DefaultHints returns the remediation rules in match order. Each call
// returns a fresh slice.
func DefaultHints() []Hint {
	return []Hint{
		{
			Pattern:    regexp.MustCompile(`(?i)timeout`),
			Suggestion: "Increase timeouts or add retry logic; investigate slowness of dependent services.",
		},
		{
			Pattern:    regexp.MustCompile(`(?i)nullpointer|null pointer|none type`),
			Suggestion: "Check input/setup for missing objects; add defensive null checks or fixtures.",
		},
		{
			Pattern:    regexp.MustCompile(`(?i)assert|assertionerror`),
			Suggestion: "Verify expected values and test data; add clearer assertions and tolerance for timing.",
		},
		{
			Pattern:    regexp.MustCompile(`(?i)no such element|element not found|selector`),
			Suggestion: "Stabilize selectors, add waits for element visibility, ensure test data/setup.",
		},
		{
			Pattern:    regexp.MustCompile(`(?i)connection refused|connectionreset|refused`),
			Suggestion: "Check service availability, network issues, and retries/backoff.",
		},
		{
			Pattern:    regexp.MustCompile(`(?i)database|sql|db`),
			Suggestion: "Verify DB connectivity, migrations and test fixtures; isolate DB tests.",
		},
	}
}

// Recommendations picks the first matching hint for each reason, at most one
// per reason. When nothing matches, the top reason gets GenericSuggestion.
func Recommendations(topReasons []analytics.ReasonSummary, hints []Hint) []Recommendation {
	recs := make([]Recommendation, 0)
	seen := make(map[string]bool)

	for _, r := range topReasons {
		if seen[r.Reason] {
			continue
		}
		for _, h := range hints {
			if h.Pattern.MatchString(r.Reason) {
				recs = append(recs, Recommendation{Reason: r.Reason, Suggestion: h.Suggestion})
				seen[r.Reason] = true
				break
			}
		}
	}

	if len(recs) == 0 && len(topReasons) > 0 {
		recs = append(recs, Recommendation{Reason: topReasons[0].Reason, Suggestion: GenericSuggestion})
	}
	return recs
}

// HealthStatus labels a pass rate percentage
func HealthStatus(passRate float64) string {
	switch {
	case passRate >= 95:
		return HealthExcellent
	case passRate >= 85:
		return HealthGood
	case passRate >= 70:
		return HealthFair
	default:
		return HealthPoor
	}
}

// Summarize creates a high-level summary of a run
func Summarize(total, failed int, passRate float64, analysis *analytics.Analysis) *ExecutiveSummary {
	summary := &ExecutiveSummary{
		HealthStatus: HealthStatus(passRate),
		KeyInsights:  make([]string, 0),
	}

	if failed == 0 {
		summary.KeyInsights = append(summary.KeyInsights,
			"All tests passed successfully - no failures detected")
	} else {
		summary.KeyInsights = append(summary.KeyInsights,
			fmt.Sprintf("%d test(s) failed out of %d total", failed, total))
	}

	switch unique := len(analysis.TopReasons); {
	case unique == 1:
		summary.KeyInsights = append(summary.KeyInsights,
			"Single root cause identified - focused fix possible")
	case unique > 1:
		summary.KeyInsights = append(summary.KeyInsights,
			fmt.Sprintf("%d unique failure patterns detected", unique))
	}

	if n := len(analysis.RecurringFailures); n > 0 {
		summary.KeyInsights = append(summary.KeyInsights,
			fmt.Sprintf("%d test(s) failed in more than one report file", n))
	}

	summary.Recommendation = recommendation(summary.HealthStatus, len(analysis.RecurringFailures))
	return summary
}

func recommendation(health string, recurring int) string {
	if health == HealthExcellent {
		return "Continue maintaining high quality standards. Monitor for any new flaky tests."
	}
	if recurring > 0 {
		return "Address recurring failures first; they affect several suites at once."
	}
	return "Focus on stabilizing failing scenarios. Prioritize fixes based on failure frequency."
}
