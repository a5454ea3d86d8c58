package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lirany1/cucumber-insights/pkg/config"
	"github.com/lirany1/cucumber-insights/pkg/logger"
	"github.com/lirany1/cucumber-insights/pkg/models"
)

const (
	markdownReasons  = 5
	markdownFailures = 10
)

// Exporter writes an aggregate to the JSON and markdown outputs
type Exporter struct {
	config *config.Config
}

// NewExporter creates a new exporter
func NewExporter(cfg *config.Config) *Exporter {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Exporter{config: cfg}
}

// Export writes the JSON report and the markdown summary to the configured paths
func (e *Exporter) Export(agg *models.Aggregate) error {
	if err := WriteJSON(agg, e.config.ReportOutput); err != nil {
		return err
	}
	if err := WriteMarkdown(agg, e.config.SummaryPath); err != nil {
		return err
	}
	logger.Infof("Wrote: %s and %s", e.config.ReportOutput, e.config.SummaryPath)
	return nil
}

// WriteJSON writes the aggregate with two-space indentation. Markup in
// traces is written as-is rather than as \u003c escapes.
func WriteJSON(agg *models.Aggregate, path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(agg); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return writeFile(path, buf.Bytes())
}

// WriteMarkdown writes the short human-readable summary
func WriteMarkdown(agg *models.Aggregate, path string) error {
	return writeFile(path, []byte(RenderMarkdown(agg)))
}

// RenderMarkdown formats the summary blocks joined by blank lines
func RenderMarkdown(agg *models.Aggregate) string {
	md := []string{
		"# QA Automated Summary\n",
		fmt.Sprintf("- Files parsed: %d", agg.FilesParsed),
		fmt.Sprintf("- Passed: %d  •  Failed: %d  •  Skipped: %d\n",
			agg.Counts[models.StatusPassed],
			agg.Counts[models.StatusFailed],
			agg.Counts[models.StatusSkipped]),
		"## Top failure reasons",
	}

	for i, r := range agg.TopFailureReasons {
		if i == markdownReasons {
			break
		}
		md = append(md, fmt.Sprintf("- %s (count: %d)", r.Reason, r.Count))
	}

	md = append(md, "\n## Top failing tests (first 10)")
	for i, f := range agg.Failures {
		if i == markdownFailures {
			break
		}
		md = append(md, fmt.Sprintf("- %s: %s — %s", f.File, f.Name, f.Reason))
	}

	return strings.Join(md, "\n\n")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
