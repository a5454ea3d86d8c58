// Package messages models the cucumber message envelopes embedded in HTML
// reports. Each Envelope carries at most one recognized payload; unknown
// keys are ignored when decoding.
package messages

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind identifies which payload an envelope carries
type Kind string

const (
	KindPickle           Kind = "pickle"
	KindTestCase         Kind = "testCase"
	KindTestCaseStarted  Kind = "testCaseStarted"
	KindTestStepFinished Kind = "testStepFinished"
	KindTestCaseFinished Kind = "testCaseFinished"
	KindGherkinDocument  Kind = "gherkinDocument"
	KindOther            Kind = "other"
)

// Envelope is a single structured record from the embedded payload
type Envelope struct {
	Pickle           *Pickle           `json:"pickle,omitempty"`
	TestCase         *TestCase         `json:"testCase,omitempty"`
	TestCaseStarted  *TestCaseStarted  `json:"testCaseStarted,omitempty"`
	TestStepFinished *TestStepFinished `json:"testStepFinished,omitempty"`
	TestCaseFinished *TestCaseFinished `json:"testCaseFinished,omitempty"`
	GherkinDocument  *GherkinDocument  `json:"gherkinDocument,omitempty"`
}

// Kind reports the first recognized payload present
func (e *Envelope) Kind() Kind {
	switch {
	case e.Pickle != nil:
		return KindPickle
	case e.TestCase != nil:
		return KindTestCase
	case e.TestCaseStarted != nil:
		return KindTestCaseStarted
	case e.TestStepFinished != nil:
		return KindTestStepFinished
	case e.TestCaseFinished != nil:
		return KindTestCaseFinished
	case e.GherkinDocument != nil:
		return KindGherkinDocument
	default:
		return KindOther
	}
}

// Pickle is a compiled, executable scenario
type Pickle struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// DisplayName prefers the scenario name, then the feature uri
func (p *Pickle) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.URI
}

// TestCase binds a pickle to its step definitions
type TestCase struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Keyword  string `json:"keyword"`
	PickleID string `json:"pickleId"`
}

// DisplayName prefers the explicit name, then the keyword
func (tc *TestCase) DisplayName() string {
	if tc.Name != "" {
		return tc.Name
	}
	return tc.Keyword
}

// TestCaseStarted marks one attempt at running a test case
type TestCaseStarted struct {
	ID         string `json:"id"`
	TestCaseID string `json:"testCaseId"`
	// TestCase appears in some older report generators instead of TestCaseID
	TestCase string `json:"testCase"`
	PickleID string `json:"pickleId"`
	Attempt  int    `json:"attempt"`
}

// Target returns the id this attempt refers to: test case id, else pickle id
func (s *TestCaseStarted) Target() string {
	switch {
	case s.TestCaseID != "":
		return s.TestCaseID
	case s.TestCase != "":
		return s.TestCase
	default:
		return s.PickleID
	}
}

// Exception is the structured error attached to a failed step
type Exception struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// TestStepResult is the outcome of one step
type TestStepResult struct {
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	Exception *Exception `json:"exception,omitempty"`
}

// TestStepFinished reports the result of a step within an attempt
type TestStepFinished struct {
	TestCaseStartedID string         `json:"testCaseStartedId"`
	TestStepID        string         `json:"testStepId"`
	TestStepResult    TestStepResult `json:"testStepResult"`
}

// TestCaseResult is the optional scenario-level result some generators emit
type TestCaseResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TestCaseFinished closes an attempt
type TestCaseFinished struct {
	TestCaseStartedID string          `json:"testCaseStartedId"`
	WillBeRetried     bool            `json:"willBeRetried"`
	TestCaseResult    *TestCaseResult `json:"testCaseResult,omitempty"`
}

// GherkinDocument is kept only so its presence can be recognized
type GherkinDocument struct {
	URI string `json:"uri"`
}

// Decode parses a JSON array of envelopes. Array elements that are not
// objects, or whose known payloads have unexpected shapes, are skipped.
func Decode(data []byte) ([]Envelope, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode message array: %w", err)
	}

	envelopes := make([]Envelope, 0, len(raw))
	for _, item := range raw {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			continue
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, nil
}
