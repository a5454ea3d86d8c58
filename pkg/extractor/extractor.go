// Package extractor locates the cucumber message payload embedded in an
// HTML report.
package extractor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/lirany1/cucumber-insights/pkg/logger"
	"github.com/lirany1/cucumber-insights/pkg/messages"
)

// Pattern is a named regular expression whose first group captures a JSON array.
// A Balanced pattern only locates the opening bracket; the array is then read
// as one JSON value from there, and a value that does not decode lets the next
// pattern try instead of failing the run.
type Pattern struct {
	Name     string
	Expr     *regexp.Regexp
	Balanced bool
}

// DefaultPatterns returns the payload patterns in the order they are tried
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name: "global-assignment",
			Expr: regexp.MustCompile(`(?s)window\.CUCUMBER_MESSAGES\s*=\s*(\[.*?\])\s*;`),
		},
		{
			// some reports omit the trailing semicolon
			Name: "global-assignment-eol",
			Expr: regexp.MustCompile(`(?ms)window\.CUCUMBER_MESSAGES\s*=\s*(\[.*\])\s*$`),
		},
		{
			Name:     "messages-property",
			Expr:     regexp.MustCompile(`"messages"\s*:\s*(\[)`),
			Balanced: true,
		},
	}
}

// escapedControl matches \xNN escapes, which are valid JavaScript but not JSON
var escapedControl = regexp.MustCompile(`\\x[0-9A-Fa-f]{2}`)

// Match is a successfully decoded payload
type Match struct {
	Pattern   string
	Envelopes []messages.Envelope
}

// Extractor tries an immutable, ordered list of patterns
type Extractor struct {
	patterns []Pattern
}

// New creates an extractor; nil patterns selects DefaultPatterns
func New(patterns []Pattern) *Extractor {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	cp := make([]Pattern, len(patterns))
	copy(cp, patterns)
	return &Extractor{patterns: cp}
}

// Extract returns the decoded payload of the first matching pattern.
// A nil Match with a nil error means no payload was found (or it was an
// empty array) and the caller should fall back to DOM scraping. A payload
// matched by an assignment pattern that still fails to decode after cleanup
// is returned as an error.
func (e *Extractor) Extract(html string) (*Match, error) {
	for _, p := range e.patterns {
		var (
			envs []messages.Envelope
			err  error
		)
		if p.Balanced {
			loc := p.Expr.FindStringSubmatchIndex(html)
			if len(loc) < 4 || loc[2] < 0 {
				continue
			}
			envs, err = decodeValue(html[loc[2]:])
			if err != nil {
				logger.Debugf("payload matched %s but did not decode, trying next pattern: %v", p.Name, err)
				continue
			}
		} else {
			m := p.Expr.FindStringSubmatch(html)
			if len(m) < 2 {
				continue
			}
			envs, err = decodeWithCleanup(p.Name, m[1])
			if err != nil {
				return nil, err
			}
		}

		if len(envs) == 0 {
			return nil, nil
		}
		return &Match{Pattern: p.Name, Envelopes: envs}, nil
	}
	return nil, nil
}

func decodeWithCleanup(name, raw string) ([]messages.Envelope, error) {
	envs, err := messages.Decode([]byte(raw))
	if err == nil {
		return envs, nil
	}
	logger.Debugf("payload matched %s but did not decode, retrying after cleanup: %v", name, err)
	envs, err = messages.Decode([]byte(escapedControl.ReplaceAllString(raw, "")))
	if err != nil {
		return nil, fmt.Errorf("failed to parse payload matched by %s: %w", name, err)
	}
	return envs, nil
}

// decodeValue reads exactly one JSON value from the start of text, so nested
// arrays and trailing page content do not end the payload early
func decodeValue(text string) ([]messages.Envelope, error) {
	readOne := func(s string) ([]messages.Envelope, error) {
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(s)).Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to read message array: %w", err)
		}
		return messages.Decode(raw)
	}

	envs, err := readOne(text)
	if err == nil {
		return envs, nil
	}
	return readOne(escapedControl.ReplaceAllString(text, ""))
}
