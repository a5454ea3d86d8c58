package analytics

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/lirany1/cucumber-insights/pkg/reasons"
	"github.com/lirany1/cucumber-insights/pkg/storage"
)

// UnnamedTest labels dashboard failures that carry no usable name
const UnnamedTest = "Unnamed Test"

const (
	defaultTopReasons = 10
	defaultTopTests   = 20
	maxExamples       = 2

	// qualityThreshold is the pass-rate change, in points, that counts as a trend
	qualityThreshold = 5.0
)

// Failure is a dashboard failure entry after input normalization
type Failure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
	File  string `json:"file"`
}

// ReasonSummary is a normalized reason with its count and example traces
type ReasonSummary struct {
	Reason   string   `json:"reason"`
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
}

// TestCount is how many failures were recorded for a test name
type TestCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// RecurringFailure is a test that failed in more than one report file
type RecurringFailure struct {
	Test        string   `json:"test"`
	Occurrences int      `json:"occurrences"`
	Files       []string `json:"files"`
}

// Analysis is the failure breakdown shown on the dashboard
type Analysis struct {
	TopReasons        []ReasonSummary    `json:"top_reasons"`
	TopTests          []TestCount        `json:"top_tests"`
	RecurringFailures []RecurringFailure `json:"recurring_failures"`
}

// History is the part of the run store the trend report reads
type History interface {
	RunsSince(days int) ([]storage.RunRecord, error)
	FailureCountsByTest(days, limit int) ([]storage.TestFailureCount, error)
}

// FlakyTest failed in some but not all runs of the window
type FlakyTest struct {
	Name        string  `json:"name"`
	FailedRuns  int     `json:"failedRuns"`
	TotalRuns   int     `json:"totalRuns"`
	FlakyScore  float64 `json:"flakyScore"`
	FailureRate float64 `json:"failureRate"`
}

// Trends summarizes stored runs over a window of days
type Trends struct {
	Runs         []storage.RunRecord `json:"runs"`
	PassRates    []float64           `json:"passRates"`
	QualityTrend string              `json:"qualityTrend"`
	FlakyTests   []FlakyTest         `json:"flakyTests"`
}

// Engine handles failure analysis, optionally backed by run history
type Engine struct {
	reasons    *reasons.Extractor
	history    History
	topReasons int
	topTests   int
}

// NewEngine creates a new analytics engine; history may be nil
func NewEngine(history History) *Engine {
	return &Engine{
		reasons:    reasons.NewExtractor(),
		history:    history,
		topReasons: defaultTopReasons,
		topTests:   defaultTopTests,
	}
}

// Analyze groups failures by normalized reason and by test name, and finds
// tests that failed in more than one file
func (e *Engine) Analyze(failures []Failure) *Analysis {
	reasonCounter := reasons.NewCounter()
	testCounter := reasons.NewCounter()
	examples := make(map[string][]string)

	var testOrder []string
	testFiles := make(map[string][]string)

	for _, f := range failures {
		name := f.Name
		if name == "" {
			name = UnnamedTest
		}

		reason := e.reasons.Normalize(f.Error)
		reasonCounter.Add(reason, 1)
		testCounter.Add(name, 1)

		if trace := strings.TrimSpace(f.Error); trace != "" && len(examples[reason]) < maxExamples {
			examples[reason] = append(examples[reason], trace)
		}

		if f.File == "" {
			continue
		}
		files, seen := testFiles[name]
		if !seen {
			testOrder = append(testOrder, name)
		}
		if !slices.Contains(files, f.File) {
			testFiles[name] = append(files, f.File)
		}
	}

	analysis := &Analysis{
		TopReasons:        make([]ReasonSummary, 0),
		TopTests:          make([]TestCount, 0),
		RecurringFailures: make([]RecurringFailure, 0),
	}

	for _, entry := range reasonCounter.MostCommon(e.topReasons) {
		ex := examples[entry.Key]
		if ex == nil {
			ex = []string{}
		}
		analysis.TopReasons = append(analysis.TopReasons, ReasonSummary{
			Reason:   entry.Key,
			Count:    entry.Count,
			Examples: ex,
		})
	}

	for _, entry := range testCounter.MostCommon(e.topTests) {
		analysis.TopTests = append(analysis.TopTests, TestCount{Name: entry.Key, Count: entry.Count})
	}

	for _, name := range testOrder {
		if files := testFiles[name]; len(files) > 1 {
			analysis.RecurringFailures = append(analysis.RecurringFailures, RecurringFailure{
				Test:        name,
				Occurrences: len(files),
				Files:       files,
			})
		}
	}

	return analysis
}

// GenerateTrends reads the runs of the last days from history
func (e *Engine) GenerateTrends(days int) (*Trends, error) {
	if e.history == nil {
		return nil, fmt.Errorf("run history is not configured")
	}

	runs, err := e.history.RunsSince(days)
	if err != nil {
		return nil, err
	}

	trends := &Trends{
		Runs:         runs,
		PassRates:    make([]float64, len(runs)),
		QualityTrend: QualityTrend(runs),
		FlakyTests:   make([]FlakyTest, 0),
	}
	if trends.Runs == nil {
		trends.Runs = []storage.RunRecord{}
	}
	for i, run := range runs {
		trends.PassRates[i] = run.PassRate
	}

	counts, err := e.history.FailureCountsByTest(days, 0)
	if err != nil {
		return nil, err
	}
	trends.FlakyTests = DetectFlakyTests(counts)

	return trends, nil
}

// QualityTrend compares the pass rates of the last two runs, oldest first
func QualityTrend(runs []storage.RunRecord) string {
	if len(runs) < 2 {
		return "unknown"
	}

	change := runs[len(runs)-1].PassRate - runs[len(runs)-2].PassRate
	switch {
	case change > qualityThreshold:
		return "improving"
	case change < -qualityThreshold:
		return "degrading"
	default:
		return "stable"
	}
}

// DetectFlakyTests keeps tests that failed in at least one but not every
// run, highest failed-run ratio first
func DetectFlakyTests(counts []storage.TestFailureCount) []FlakyTest {
	flaky := make([]FlakyTest, 0)

	for _, c := range counts {
		if c.Runs < 2 || c.Failures == 0 || c.Failures >= c.Runs {
			continue
		}
		score := float64(c.Failures) / float64(c.Runs)
		flaky = append(flaky, FlakyTest{
			Name:        c.Name,
			FailedRuns:  c.Failures,
			TotalRuns:   c.Runs,
			FlakyScore:  score,
			FailureRate: score * 100,
		})
	}

	sort.SliceStable(flaky, func(i, j int) bool {
		return flaky[i].FlakyScore > flaky[j].FlakyScore
	})
	return flaky
}
