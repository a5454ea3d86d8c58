// Package dashboard renders the static QA dashboard from a summary document.
package dashboard

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lirany1/cucumber-insights/pkg/analytics"
	"github.com/lirany1/cucumber-insights/pkg/config"
	"github.com/lirany1/cucumber-insights/pkg/insights"
	"github.com/lirany1/cucumber-insights/pkg/locator"
	"github.com/lirany1/cucumber-insights/pkg/logger"
	"github.com/lirany1/cucumber-insights/pkg/reasons"
)

const (
	noTrace       = "No trace available"
	maxTraceShown = 1200
)

// Options control presentation only
type Options struct {
	Title      string
	ChartJSURL string
}

// OptionsFromConfig takes the dashboard settings from cfg
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{Title: cfg.DashboardTitle, ChartJSURL: cfg.ChartJSURL}
}

type failingTest struct {
	Name  string
	Count int
	Trace string
}

type view struct {
	Options         Options
	Metrics         *Metrics
	PassRate        float64
	HealthScore     float64
	Summary         *insights.ExecutiveSummary
	ChartLabels     []string
	ChartCounts     []int
	Tests           []failingTest
	Recurring       []analytics.RecurringFailure
	Recommendations []insights.Recommendation
}

var dashboardTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"formatRate": func(rate float64) string {
		return fmt.Sprintf("%.1f", rate)
	},
}).Parse(templateString))

// Render produces the dashboard HTML for metrics and their analysis
func Render(m *Metrics, analysis *analytics.Analysis, opts Options) (string, error) {
	passRate := m.PassRate()

	v := view{
		Options:         opts,
		Metrics:         m,
		PassRate:        passRate,
		HealthScore:     passRate,
		Summary:         insights.Summarize(m.Total, m.Failed, passRate, analysis),
		ChartLabels:     make([]string, 0, len(analysis.TopReasons)),
		ChartCounts:     make([]int, 0, len(analysis.TopReasons)),
		Recurring:       analysis.RecurringFailures,
		Recommendations: insights.Recommendations(analysis.TopReasons, insights.DefaultHints()),
	}

	for _, r := range analysis.TopReasons {
		v.ChartLabels = append(v.ChartLabels, r.Reason)
		v.ChartCounts = append(v.ChartCounts, r.Count)
	}

	examples := firstErrors(m.Failures)
	for _, t := range analysis.TopTests {
		trace, ok := examples[t.Name]
		if !ok {
			trace = noTrace
		}
		v.Tests = append(v.Tests, failingTest{
			Name:  t.Name,
			Count: t.Count,
			Trace: reasons.Truncate(trace, maxTraceShown),
		})
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("failed to render dashboard: %w", err)
	}
	return buf.String(), nil
}

// firstErrors maps each test name to the first non-empty error seen for it
func firstErrors(failures []analytics.Failure) map[string]string {
	out := make(map[string]string)
	for _, f := range failures {
		if _, seen := out[f.Name]; !seen && f.Error != "" {
			out[f.Name] = f.Error
		}
	}
	return out
}

// GenerateFile reads the summary JSON at in and writes the dashboard to out.
// A missing input is reported as locator.ErrNoInput.
func GenerateFile(in, out string, opts Options) error {
	data, err := os.ReadFile(in)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", locator.ErrNoInput, in)
		}
		return fmt.Errorf("failed to read %s: %w", in, err)
	}

	m, err := LoadMetrics(data)
	if err != nil {
		return err
	}

	page, err := Render(m, analytics.NewEngine(nil).Analyze(m.Failures), opts)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(out, []byte(page), 0644); err != nil {
		return fmt.Errorf("failed to write dashboard: %w", err)
	}

	logger.Infof("Wrote dashboard: %s", out)
	return nil
}
