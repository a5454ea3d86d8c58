// Package aggregator turns decoded cucumber messages into counts and
// failure records.
//
// Counts are scenario-level: each test case attempt (one testCaseStarted)
// contributes exactly one status. The status reported on testCaseFinished
// wins when a generator provides it; otherwise the attempt takes the most
// severe status among its steps. Attempts marked willBeRetried are not
// counted, so a retried scenario is counted once, by its final attempt.
// A step that carries no testCaseStartedId has no attempt to roll up into and
// is counted as a unit of its own. Step-level statuses are kept separately in
// StepCounts.
package aggregator

import (
	"github.com/lirany1/cucumber-insights/pkg/messages"
	"github.com/lirany1/cucumber-insights/pkg/models"
	"github.com/lirany1/cucumber-insights/pkg/reasons"
)

// severity orders statuses when deriving a scenario status from its steps
var severity = map[string]int{
	models.StatusPassed:    1,
	models.StatusSkipped:   2,
	models.StatusPending:   3,
	models.StatusUndefined: 4,
	models.StatusAmbiguous: 5,
	models.StatusFailed:    6,
}

// Options tunes the aggregation output
type Options struct {
	TraceLimit int
	TopReasons int
}

// DefaultOptions matches the limits used in report_summary.json
func DefaultOptions() Options {
	return Options{TraceLimit: 5000, TopReasons: 10}
}

// Aggregator is stateless; every call to Aggregate uses fresh accumulators
type Aggregator struct {
	reasons *reasons.Extractor
	opts    Options
}

// New creates an aggregator
func New(extractor *reasons.Extractor, opts Options) *Aggregator {
	if extractor == nil {
		extractor = reasons.NewExtractor()
	}
	defaults := DefaultOptions()
	if opts.TraceLimit <= 0 {
		opts.TraceLimit = defaults.TraceLimit
	}
	if opts.TopReasons <= 0 {
		opts.TopReasons = defaults.TopReasons
	}
	return &Aggregator{reasons: extractor, opts: opts}
}

// identities holds the id mappings built in the first pass
type identities struct {
	pickleNames    map[string]string
	testCaseNames  map[string]string
	testCasePickle map[string]string
	started        map[string]string
}

// attempt tracks one testCaseStarted while scanning results
type attempt struct {
	id             string
	stepStatus     string
	finishedStatus string
	finishedMsg    string
	retried        bool
	hasFailure     bool
}

// Aggregate runs the identity pass and the result pass over envelopes
func (a *Aggregator) Aggregate(envs []messages.Envelope) *models.Result {
	ids := a.collectIdentities(envs)

	result := &models.Result{
		Mode:       models.ModeStructured,
		Confidence: models.ConfidenceHigh,
		Counts:     models.Counts{},
		StepCounts: models.Counts{},
		Failures:   make([]models.FailureRecord, 0),
	}

	attempts := make(map[string]*attempt)
	order := make([]string, 0)
	attemptFor := func(id string) *attempt {
		if at, ok := attempts[id]; ok {
			return at
		}
		at := &attempt{id: id}
		attempts[id] = at
		order = append(order, id)
		return at
	}

	for i := range envs {
		env := &envs[i]
		switch {
		case env.TestCaseStarted != nil && env.TestCaseStarted.ID != "":
			attemptFor(env.TestCaseStarted.ID)

		case env.TestStepFinished != nil:
			step := env.TestStepFinished
			status := models.NormalizeStatus(step.TestStepResult.Status)
			result.StepCounts.Add(status, 1)

			var at *attempt
			if step.TestCaseStartedID != "" {
				at = attemptFor(step.TestCaseStartedID)
				if severity[status] >= severity[at.stepStatus] {
					at.stepStatus = status
				}
			} else {
				// a step with no attempt to belong to counts as its own unit
				result.Counts.Add(status, 1)
			}

			if status == models.StatusFailed {
				result.Failures = append(result.Failures, a.stepFailure(step, ids))
				if at != nil {
					at.hasFailure = true
				}
			}

		case env.TestCaseFinished != nil && env.TestCaseFinished.TestCaseStartedID != "":
			finished := env.TestCaseFinished
			at := attemptFor(finished.TestCaseStartedID)
			at.retried = finished.WillBeRetried
			if res := finished.TestCaseResult; res != nil && res.Status != "" {
				at.finishedStatus = models.NormalizeStatus(res.Status)
				at.finishedMsg = res.Message
			}
		}
	}

	for _, id := range order {
		at := attempts[id]
		if at.retried {
			continue
		}
		status := at.finishedStatus
		if status == "" {
			status = at.stepStatus
		}
		if status == "" {
			// started but nothing reported; no status to count
			continue
		}
		result.Counts.Add(status, 1)

		if status == models.StatusFailed && !at.hasFailure {
			result.Failures = append(result.Failures, a.scenarioFailure(at, ids))
		}
	}

	result.TopReasons = TopReasons(result.Failures, a.opts.TopReasons)
	return result
}

func (a *Aggregator) collectIdentities(envs []messages.Envelope) *identities {
	ids := &identities{
		pickleNames:    make(map[string]string),
		testCaseNames:  make(map[string]string),
		testCasePickle: make(map[string]string),
		started:        make(map[string]string),
	}

	for i := range envs {
		env := &envs[i]

		if p := env.Pickle; p != nil && p.ID != "" {
			if name := p.DisplayName(); name != "" {
				ids.pickleNames[p.ID] = name
			}
		}

		if tc := env.TestCase; tc != nil && tc.ID != "" {
			if name := tc.DisplayName(); name != "" {
				ids.testCaseNames[tc.ID] = name
			}
			if tc.PickleID != "" {
				ids.testCasePickle[tc.ID] = tc.PickleID
			}
		}

		if s := env.TestCaseStarted; s != nil && s.ID != "" {
			if target := s.Target(); target != "" {
				ids.started[s.ID] = target
			}
		}
	}
	return ids
}

// resolveName walks started id -> test case/pickle id -> display name
func (ids *identities) resolveName(startedID string) string {
	if startedID == "" {
		return models.UnknownTest
	}

	mapped, ok := ids.started[startedID]
	if !ok {
		mapped = startedID
	}

	if name, ok := ids.testCaseNames[mapped]; ok {
		return name
	}
	if name, ok := ids.pickleNames[mapped]; ok {
		return name
	}
	if pickleID, ok := ids.testCasePickle[mapped]; ok {
		if name, ok := ids.pickleNames[pickleID]; ok {
			return name
		}
	}
	return models.UnknownTest
}

func (a *Aggregator) stepFailure(step *messages.TestStepFinished, ids *identities) models.FailureRecord {
	res := step.TestStepResult

	reason := ""
	if exc := res.Exception; exc != nil && exc.Type != "" {
		reason = exc.Type
		if exc.Message != "" {
			reason += ": " + exc.Message
		}
	}
	if reason == "" {
		reason = a.reasons.Extract(res.Message)
	}
	if reason == "" {
		reason = models.UnknownFailure
	}

	trace := res.Message
	if trace == "" && res.Exception != nil {
		trace = res.Exception.Message
	}

	return models.FailureRecord{
		TestCaseStartedID: step.TestCaseStartedID,
		Name:              ids.resolveName(step.TestCaseStartedID),
		Reason:            reason,
		Trace:             reasons.Truncate(trace, a.opts.TraceLimit),
	}
}

func (a *Aggregator) scenarioFailure(at *attempt, ids *identities) models.FailureRecord {
	reason := a.reasons.Extract(at.finishedMsg)
	if reason == "" {
		reason = models.UnknownFailure
	}
	return models.FailureRecord{
		TestCaseStartedID: at.id,
		Name:              ids.resolveName(at.id),
		Reason:            reason,
		Trace:             reasons.Truncate(at.finishedMsg, a.opts.TraceLimit),
	}
}

// TopReasons ranks failure reasons by frequency, ties in first-seen order
func TopReasons(failures []models.FailureRecord, n int) []models.ReasonCount {
	counter := reasons.NewCounter()
	for _, f := range failures {
		if f.Reason != "" {
			counter.Add(f.Reason, 1)
		}
	}

	top := make([]models.ReasonCount, 0, counter.Len())
	for _, e := range counter.MostCommon(n) {
		top = append(top, models.ReasonCount{Reason: e.Key, Count: e.Count})
	}
	return top
}
