package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lirany1/cucumber-insights/pkg/config"
	"github.com/lirany1/cucumber-insights/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAggregate() *models.Aggregate {
	return &models.Aggregate{
		FilesParsed:   2,
		Total:         10,
		Passed:        7,
		Failed:        2,
		Skipped:       1,
		Counts:        models.Counts{"PASSED": 7, "FAILED": 2, "SKIPPED": 1},
		StepCounts:    models.Counts{"PASSED": 30, "FAILED": 2},
		TotalFailures: 2,
		Failures: []models.FailureRecord{
			{File: "a.html", Name: "t1", Reason: "TimeoutError: slow", Trace: "TimeoutError: slow\n at x"},
			{File: "b.html", Name: "t1", Reason: "TimeoutError: slow"},
		},
		TopFailureReasons: []models.ReasonCount{{Reason: "TimeoutError: slow", Count: 2}},
		Files: []models.FileSummary{
			{File: "a.html", Mode: models.ModeStructured, Confidence: models.ConfidenceHigh},
			{File: "b.html", Mode: models.ModeDOM, Confidence: models.ConfidenceMedium},
		},
	}
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(sampleAggregate())

	expected := strings.Join([]string{
		"# QA Automated Summary\n",
		"- Files parsed: 2",
		"- Passed: 7  •  Failed: 2  •  Skipped: 1\n",
		"## Top failure reasons",
		"- TimeoutError: slow (count: 2)",
		"\n## Top failing tests (first 10)",
		"- a.html: t1 — TimeoutError: slow",
		"- b.html: t1 — TimeoutError: slow",
	}, "\n\n")
	assert.Equal(t, expected, md)
}

func TestRenderMarkdownLimits(t *testing.T) {
	agg := &models.Aggregate{Counts: models.Counts{}}
	for i := 0; i < 8; i++ {
		agg.TopFailureReasons = append(agg.TopFailureReasons, models.ReasonCount{Reason: fmt.Sprintf("r%d", i), Count: 1})
	}
	for i := 0; i < 15; i++ {
		agg.Failures = append(agg.Failures, models.FailureRecord{File: "f.html", Name: fmt.Sprintf("t%d", i), Reason: "r"})
	}

	md := RenderMarkdown(agg)

	assert.Contains(t, md, "- r4 (count: 1)")
	assert.NotContains(t, md, "- r5 (count: 1)")
	assert.Contains(t, md, "- f.html: t9 — r")
	assert.NotContains(t, md, "- f.html: t10 — r")
	assert.Contains(t, md, "- Passed: 0  •  Failed: 0  •  Skipped: 0")
}

func TestWriteJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report_summary.json")
	agg := sampleAggregate()

	require.NoError(t, WriteJSON(agg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"files_parsed\": 2,"))

	var decoded models.Aggregate
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *agg, decoded)
	assert.Equal(t, decoded.Counts.Total(), decoded.Total)
}

func TestWriteJSONKeepsMarkupInTraces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report_summary.json")
	agg := sampleAggregate()
	agg.Failures[0].Trace = `<div class="error">a < b && c > d</div>`

	require.NoError(t, WriteJSON(agg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"trace": "<div class=\"error\">a < b && c > d</div>"`)
	assert.NotContains(t, string(data), `\u003c`)
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.ReportOutput = filepath.Join(dir, "report_summary.json")
	cfg.SummaryPath = filepath.Join(dir, "summary.md")

	require.NoError(t, NewExporter(cfg).Export(sampleAggregate()))

	assert.FileExists(t, cfg.ReportOutput)
	md, err := os.ReadFile(cfg.SummaryPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# QA Automated Summary"))
}
