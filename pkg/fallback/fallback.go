// Package fallback scrapes counts and failures from report HTML when no
// structured payload is embedded.
package fallback

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/lirany1/cucumber-insights/pkg/aggregator"
	"github.com/lirany1/cucumber-insights/pkg/models"
	"github.com/lirany1/cucumber-insights/pkg/reasons"
)

const maxNameLength = 120

// Options controls which attributes and keywords the scraper looks for
type Options struct {
	StatusAttr string
	NameAttr   string
	TraceLimit int
	TopReasons int
	// Keywords maps a lower-case keyword to the status it is counted as
	Keywords []Keyword
}

// Keyword is one entry of the low-confidence keyword count
type Keyword struct {
	Word   string
	Status string
}

// DefaultOptions returns the attribute names and keywords used by cucumber html reports
func DefaultOptions() Options {
	return Options{
		StatusAttr: "data-status",
		NameAttr:   "data-name",
		TraceLimit: 5000,
		TopReasons: 10,
		Keywords: []Keyword{
			{Word: "passed", Status: models.StatusPassed},
			{Word: "failed", Status: models.StatusFailed},
			{Word: "skipped", Status: models.StatusSkipped},
		},
	}
}

// Scraper holds immutable scraping configuration
type Scraper struct {
	reasons *reasons.Extractor
	opts    Options
}

// New creates a scraper
func New(extractor *reasons.Extractor, opts Options) *Scraper {
	if extractor == nil {
		extractor = reasons.NewExtractor()
	}
	defaults := DefaultOptions()
	if opts.StatusAttr == "" {
		opts.StatusAttr = defaults.StatusAttr
	}
	if opts.NameAttr == "" {
		opts.NameAttr = defaults.NameAttr
	}
	if opts.TraceLimit <= 0 {
		opts.TraceLimit = defaults.TraceLimit
	}
	if opts.TopReasons <= 0 {
		opts.TopReasons = defaults.TopReasons
	}
	if opts.Keywords == nil {
		opts.Keywords = defaults.Keywords
	}
	return &Scraper{reasons: extractor, opts: opts}
}

// Scrape parses the document and classifies status-attributed elements.
// Without any such element it falls back to keyword counting, which is
// reported with low confidence and never yields failure records.
func (s *Scraper) Scrape(r io.Reader) (*models.Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var nodes []*html.Node
	walk(doc, func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, ok := attr(n, s.opts.StatusAttr); ok {
				nodes = append(nodes, n)
			}
		}
	})

	if len(nodes) == 0 {
		return s.countKeywords(doc), nil
	}

	result := &models.Result{
		Mode:       models.ModeDOM,
		Confidence: models.ConfidenceMedium,
		Counts:     models.Counts{},
		Failures:   make([]models.FailureRecord, 0),
	}

	for _, n := range nodes {
		value, _ := attr(n, s.opts.StatusAttr)
		status := classify(value)
		result.Counts.Add(status, 1)

		if status == models.StatusFailed {
			result.Failures = append(result.Failures, s.failure(n))
		}
	}

	result.TopReasons = aggregator.TopReasons(result.Failures, s.opts.TopReasons)
	return result, nil
}

// classify maps an attribute value onto a status by substring
func classify(value string) string {
	upper := strings.ToUpper(value)
	switch {
	case strings.Contains(upper, "PASS"):
		return models.StatusPassed
	case strings.Contains(upper, "SKIP"):
		return models.StatusSkipped
	case strings.Contains(upper, "FAIL"):
		return models.StatusFailed
	default:
		return models.StatusUnknown
	}
}

func (s *Scraper) failure(n *html.Node) models.FailureRecord {
	name, _ := attr(n, s.opts.NameAttr)
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(reasons.Truncate(textContent(n, ""), maxNameLength))
	}
	if name == "" {
		name = models.UnnamedTest
	}

	var parts []string
	walk(n, func(c *html.Node) {
		if c == n || c.Type != html.ElementNode {
			return
		}
		switch c.DataAtom {
		case atom.Pre, atom.Code, atom.Div:
			if txt := strings.TrimSpace(textContent(c, "\n")); txt != "" {
				parts = append(parts, txt)
			}
		}
	})
	trace := reasons.Truncate(strings.Join(parts, "\n"), s.opts.TraceLimit)

	reason := s.reasons.Extract(trace)
	if reason == "" {
		reason = models.UnknownFailure
	}

	return models.FailureRecord{Name: name, Reason: reason, Trace: trace}
}

func (s *Scraper) countKeywords(doc *html.Node) *models.Result {
	text := strings.ToLower(textContent(doc, " "))

	result := &models.Result{
		Mode:       models.ModeKeywords,
		Confidence: models.ConfidenceLow,
		Counts:     models.Counts{},
		Failures:   make([]models.FailureRecord, 0),
		TopReasons: make([]models.ReasonCount, 0),
	}
	for _, kw := range s.opts.Keywords {
		if n := strings.Count(text, strings.ToLower(kw.Word)); n > 0 {
			result.Counts.Add(kw.Status, n)
		}
	}
	return result
}

// walk visits n and its descendants in document order
func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// textContent joins the text nodes under n, skipping script and style bodies
func textContent(n *html.Node, sep string) string {
	var parts []string
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && (node.DataAtom == atom.Script || node.DataAtom == atom.Style) {
			return
		}
		if node.Type == html.TextNode {
			parts = append(parts, node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(parts, sep)
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
