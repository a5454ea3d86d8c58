// Package reasons turns free-form failure text into short, countable reasons.
package reasons

import (
	"regexp"
	"sort"
	"strings"
)

const (
	// MaxReasonLength bounds reasons derived from report text
	MaxReasonLength = 1000
	// MaxNormalizedLength bounds first-line fallbacks on the dashboard
	MaxNormalizedLength = 120
)

// Extractor derives reasons using an immutable pair of patterns
type Extractor struct {
	// detailed captures an exception-like token plus the rest of its line
	detailed *regexp.Regexp
	// token captures only the exception-like token
	token *regexp.Regexp
}

// NewExtractor returns an extractor with the default exception patterns
func NewExtractor() *Extractor {
	return &Extractor{
		detailed: regexp.MustCompile(`(?i)([A-Za-z0-9_.]+(?:Exception|Error|Failure))(?:[:\s-]+)?(.+)?`),
		token:    regexp.MustCompile(`(?i)([A-Za-z0-9_.]+(?:Exception|Error|Failure|Timeout|AssertionError))`),
	}
}

// Extract returns "Type: message" when text contains an exception-like token,
// otherwise the first non-empty line. Empty text yields "".
func (e *Extractor) Extract(text string) string {
	if text == "" {
		return ""
	}

	if m := e.detailed.FindStringSubmatch(text); m != nil {
		reason := m[1]
		if msg := strings.TrimSpace(m[2]); msg != "" {
			reason += ": " + msg
		}
		return Truncate(reason, MaxReasonLength)
	}

	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return Truncate(trimmed, MaxReasonLength)
		}
	}
	return ""
}

// Normalize collapses an error text to its exception token so that traces
// differing only in message text group together
func (e *Extractor) Normalize(text string) string {
	if text == "" {
		return "Unknown"
	}
	if m := e.token.FindStringSubmatch(text); m != nil {
		return m[1]
	}

	first := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	if first == "" {
		return "Unknown"
	}
	return Truncate(first, MaxNormalizedLength)
}

// Truncate cuts s to at most n runes
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Counter counts keys and remembers the order in which they were first seen
type Counter struct {
	order  []string
	counts map[string]int
}

// NewCounter creates an empty counter
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Add increments key by n
func (c *Counter) Add(key string, n int) {
	if _, seen := c.counts[key]; !seen {
		c.order = append(c.order, key)
	}
	c.counts[key] += n
}

// Count returns the current count for key
func (c *Counter) Count(key string) int {
	return c.counts[key]
}

// Len returns the number of distinct keys
func (c *Counter) Len() int {
	return len(c.order)
}

// Entry is one key with its count
type Entry struct {
	Key   string
	Count int
}

// MostCommon returns up to n entries by descending count; ties keep
// first-seen order. n <= 0 returns every entry.
func (c *Counter) MostCommon(n int) []Entry {
	entries := make([]Entry, 0, len(c.order))
	for _, key := range c.order {
		entries = append(entries, Entry{Key: key, Count: c.counts[key]})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})

	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
