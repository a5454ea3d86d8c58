package dashboard

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/lirany1/cucumber-insights/pkg/analytics"
	"github.com/lirany1/cucumber-insights/pkg/models"
)

// Metrics are the run totals and failures the dashboard is drawn from
type Metrics struct {
	Total    int                 `json:"total"`
	Passed   int                 `json:"passed"`
	Failed   int                 `json:"failed"`
	Skipped  int                 `json:"skipped"`
	Failures []analytics.Failure `json:"failures"`
}

// PassRate returns passed/total as a percentage, 0 when total is 0
func (m *Metrics) PassRate() float64 {
	return models.PassRate(m.Passed, m.Total)
}

// LoadMetrics reads a summary document. Totals may sit at the top level or
// under "summary"; when total is missing or zero they are inferred from
// "counts". Failure entries are normalized to name, error and file.
func LoadMetrics(data []byte) (*Metrics, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}

	summary, _ := doc["summary"].(map[string]interface{})

	m := &Metrics{
		Total:    intField(doc, summary, "total"),
		Passed:   intField(doc, summary, "passed"),
		Failed:   intField(doc, summary, "failed"),
		Skipped:  intField(doc, summary, "skipped"),
		Failures: make([]analytics.Failure, 0),
	}

	if m.Total == 0 {
		if counts, ok := doc["counts"].(map[string]interface{}); ok && len(counts) > 0 {
			for _, v := range counts {
				m.Total += toInt(v)
			}
			m.Passed = countOr(counts, m.Passed, models.StatusPassed, "passed")
			m.Failed = countOr(counts, m.Failed, models.StatusFailed, "failed")
			m.Skipped = countOr(counts, m.Skipped, models.StatusSkipped, "skipped")
		}
	}

	failures, ok := doc["failures"].([]interface{})
	if !ok || len(failures) == 0 {
		failures, _ = summary["failures"].([]interface{})
	}
	for _, item := range failures {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		m.Failures = append(m.Failures, normalizeFailure(entry))
	}

	return m, nil
}

func normalizeFailure(entry map[string]interface{}) analytics.Failure {
	name := firstString(entry, "name")
	if name == "" {
		name = nestedName(entry, "testCase")
	}
	if name == "" {
		name = nestedName(entry, "test")
	}
	if name == "" {
		name = firstString(entry, "file")
	}
	if name == "" {
		name = analytics.UnnamedTest
	}

	return analytics.Failure{
		Name:  name,
		Error: firstString(entry, "error", "trace", "reason", "message"),
		File:  firstString(entry, "file", "filename"),
	}
}

func nestedName(entry map[string]interface{}, key string) string {
	inner, ok := entry[key].(map[string]interface{})
	if !ok {
		return ""
	}
	return firstString(inner, "name")
}

// firstString returns the first non-empty value among keys, stringified
func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			if !t {
				continue
			}
			s = "true"
		default:
			b, err := json.Marshal(t)
			if err != nil {
				continue
			}
			s = string(b)
		}
		if s != "" {
			return s
		}
	}
	return ""
}

// intField reads key from the top level, falling back to the summary
// object when the top-level value is absent or zero
func intField(doc, summary map[string]interface{}, key string) int {
	if n := toInt(doc[key]); n != 0 {
		return n
	}
	return toInt(summary[key])
}

func countOr(counts map[string]interface{}, fallback int, keys ...string) int {
	for _, k := range keys {
		if v, ok := counts[k]; ok {
			if n := toInt(v); n != 0 {
				return n
			}
		}
	}
	return fallback
}

func toInt(v interface{}) int {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		return int(t)
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
