package models

import "strings"

// Canonical status names as they appear in cucumber messages
const (
	StatusPassed    = "PASSED"
	StatusFailed    = "FAILED"
	StatusSkipped   = "SKIPPED"
	StatusPending   = "PENDING"
	StatusUndefined = "UNDEFINED"
	StatusAmbiguous = "AMBIGUOUS"
	StatusUnknown   = "UNKNOWN"
)

// Default display names used when a failure cannot be attributed
const (
	UnknownTest    = "Unknown test"
	UnknownFailure = "Unknown failure"
	UnnamedTest    = "Unnamed"
)

// Mode records which extraction path produced a file's results
type Mode string

const (
	ModeStructured Mode = "structured"
	ModeDOM        Mode = "dom"
	ModeKeywords   Mode = "keywords"
)

// Confidence describes how far the counts can be trusted
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// FailureRecord is one observed failing step or scenario
type FailureRecord struct {
	File              string `json:"file,omitempty"`
	TestCaseStartedID string `json:"testCaseStartedId,omitempty"`
	Name              string `json:"name"`
	Reason            string `json:"reason"`
	Trace             string `json:"trace"`
}

// ReasonCount pairs a failure reason with its occurrence count
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Counts maps an upper-case status to the number of units with that status
type Counts map[string]int

// Add increments the counter for status, normalizing its case
func (c Counts) Add(status string, n int) {
	status = NormalizeStatus(status)
	c[status] += n
}

// Merge adds every entry of other into c
func (c Counts) Merge(other Counts) {
	for status, n := range other {
		c[status] += n
	}
}

// Total returns the sum of all counters
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// NormalizeStatus upper-cases a status and maps empty input to UNKNOWN
func NormalizeStatus(status string) string {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status == "" {
		return StatusUnknown
	}
	return status
}

// Result is the outcome of parsing a single report file
type Result struct {
	Mode       Mode
	Confidence Confidence
	// Counts holds the canonical per-scenario statuses
	Counts Counts
	// StepCounts holds per-step statuses, only filled on the structured path
	StepCounts Counts
	Failures   []FailureRecord
	TopReasons []ReasonCount
}

// FileSummary is the per-file entry kept in the aggregate
type FileSummary struct {
	File       string     `json:"file"`
	Mode       Mode       `json:"mode"`
	Confidence Confidence `json:"confidence"`
	Total      int        `json:"total"`
	Passed     int        `json:"passed"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	Failures   int        `json:"failures"`
}

// Aggregate is the merged result of a whole run, serialized to report_summary.json
type Aggregate struct {
	FilesParsed       int             `json:"files_parsed"`
	Total             int             `json:"total"`
	Passed            int             `json:"passed"`
	Failed            int             `json:"failed"`
	Skipped           int             `json:"skipped"`
	Counts            Counts          `json:"counts"`
	StepCounts        Counts          `json:"step_counts"`
	TotalFailures     int             `json:"total_failures"`
	Failures          []FailureRecord `json:"failures"`
	TopFailureReasons []ReasonCount   `json:"top_failure_reasons"`
	Files             []FileSummary   `json:"files"`
}

// PassRate returns passed/total as a percentage, 0 when total is 0
func PassRate(passed, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(passed) / float64(total) * 100
}

// SummaryFor derives a FileSummary from a parsed file
func SummaryFor(file string, r *Result) FileSummary {
	return FileSummary{
		File:       file,
		Mode:       r.Mode,
		Confidence: r.Confidence,
		Total:      r.Counts.Total(),
		Passed:     r.Counts[StatusPassed],
		Failed:     r.Counts[StatusFailed],
		Skipped:    r.Counts[StatusSkipped],
		Failures:   len(r.Failures),
	}
}
