package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lirany1/cucumber-insights/pkg/aggregator"
	"github.com/lirany1/cucumber-insights/pkg/config"
	"github.com/lirany1/cucumber-insights/pkg/extractor"
	"github.com/lirany1/cucumber-insights/pkg/fallback"
	"github.com/lirany1/cucumber-insights/pkg/locator"
	"github.com/lirany1/cucumber-insights/pkg/logger"
	"github.com/lirany1/cucumber-insights/pkg/models"
	"github.com/lirany1/cucumber-insights/pkg/reasons"
)

// RunRecorder persists finished runs; *storage.Database satisfies it
type RunRecorder interface {
	SaveRun(id, source string, at time.Time, agg *models.Aggregate) error
}

// ReportBuilder parses report files and merges them into one aggregate
type ReportBuilder struct {
	config     *config.Config
	extractor  *extractor.Extractor
	aggregator *aggregator.Aggregator
	scraper    *fallback.Scraper
	history    RunRecorder
	now        func() time.Time
}

// NewReportBuilder creates a builder; history may be nil
func NewReportBuilder(cfg *config.Config, history RunRecorder) *ReportBuilder {
	if cfg == nil {
		cfg = config.NewConfig()
	}

	re := reasons.NewExtractor()

	scrapeOpts := fallback.DefaultOptions()
	scrapeOpts.TraceLimit = cfg.TraceLimit
	scrapeOpts.TopReasons = cfg.TopReasons

	agg := aggregator.New(re, aggregator.Options{
		TraceLimit: cfg.TraceLimit,
		TopReasons: cfg.TopReasons,
	})

	return &ReportBuilder{
		config:     cfg,
		extractor:  extractor.New(extractor.DefaultPatterns()),
		aggregator: agg,
		scraper:    fallback.New(re, scrapeOpts),
		history:    history,
		now:        time.Now,
	}
}

// Build locates the reports under input, aggregates them and records the
// run when a history store is configured. A failure to record is logged,
// not returned.
func (rb *ReportBuilder) Build(input string) (*models.Aggregate, error) {
	paths, err := locator.Locate(input)
	if err != nil {
		return nil, err
	}
	logger.Infof("Found %d report file(s) under %s", len(paths), input)

	agg, err := rb.BuildFromPaths(paths)
	if err != nil {
		return nil, err
	}

	if rb.history != nil {
		runID := uuid.New().String()
		if err := rb.history.SaveRun(runID, input, rb.now(), agg); err != nil {
			logger.Warnf("Failed to save run history: %v", err)
		} else {
			logger.Infof("Saved run history with ID: %s", runID)
		}
	}

	return agg, nil
}

// BuildFromPaths parses each path in the given order and merges the results.
// Any read or payload-parse error aborts the whole run.
func (rb *ReportBuilder) BuildFromPaths(paths []string) (*models.Aggregate, error) {
	agg := &models.Aggregate{
		Counts:            models.Counts{},
		StepCounts:        models.Counts{},
		Failures:          make([]models.FailureRecord, 0),
		TopFailureReasons: make([]models.ReasonCount, 0),
		Files:             make([]models.FileSummary, 0, len(paths)),
	}

	for _, path := range paths {
		res, err := rb.ParseFile(path)
		if err != nil {
			return nil, err
		}

		name := filepath.Base(path)
		agg.FilesParsed++
		agg.Counts.Merge(res.Counts)
		agg.StepCounts.Merge(res.StepCounts)
		for _, f := range res.Failures {
			f.File = name
			agg.Failures = append(agg.Failures, f)
		}
		summary := models.SummaryFor(name, res)
		agg.Files = append(agg.Files, summary)
		logger.WithFields(logger.Fields{
			"file":     name,
			"mode":     summary.Mode,
			"total":    summary.Total,
			"failures": summary.Failures,
		}).Info("Parsed report")
	}

	agg.Total = agg.Counts.Total()
	agg.Passed = agg.Counts[models.StatusPassed]
	agg.Failed = agg.Counts[models.StatusFailed]
	agg.Skipped = agg.Counts[models.StatusSkipped]
	agg.TotalFailures = len(agg.Failures)
	agg.TopFailureReasons = aggregator.TopReasons(agg.Failures, rb.config.TopReasons)

	return agg, nil
}

// ParseFile runs extraction on one report and dispatches to the structured
// aggregator or the DOM scraper
func (rb *ReportBuilder) ParseFile(path string) (*models.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	text := string(data)
	log := logger.WithField("file", filepath.Base(path))

	match, err := rb.extractor.Extract(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if match != nil {
		log.Debugf("Found %d messages via %s", len(match.Envelopes), match.Pattern)
		return rb.aggregator.Aggregate(match.Envelopes), nil
	}

	res, err := rb.scraper.Scrape(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to scrape %s: %w", path, err)
	}
	if res.Confidence == models.ConfidenceLow {
		log.Warn("No structured payload or status attributes; counts are keyword estimates")
	} else {
		log.Debug("No structured payload; used DOM status attributes")
	}
	return res, nil
}
