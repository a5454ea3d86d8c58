package fallback

import (
	"strings"
	"testing"

	"github.com/lirany1/cucumber-insights/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const domReport = `<!doctype html>
<html><body>
  <section data-status="passed" data-name="Search by keyword"><h2>Search by keyword</h2></section>
  <section data-status="Skipped" data-name="Search by tag"></section>
  <section data-status="FAILED" data-name="Checkout with coupon">
    <h2>Checkout with coupon</h2>
    <pre>java.lang.AssertionError: expected total 90 but was 100
	at CheckoutSteps.total(CheckoutSteps.java:88)</pre>
  </section>
  <section data-status="failure">
    <span>Guest checkout</span>
    <code>ElementNotFoundException: #pay</code>
  </section>
  <section data-status="pending"></section>
</body></html>`

func TestScrapeStatusAttributes(t *testing.T) {
	res, err := New(nil, DefaultOptions()).Scrape(strings.NewReader(domReport))
	require.NoError(t, err)

	assert.Equal(t, models.ModeDOM, res.Mode)
	assert.Equal(t, models.ConfidenceMedium, res.Confidence)
	assert.Equal(t, models.Counts{"PASSED": 1, "SKIPPED": 1, "FAILED": 2, "UNKNOWN": 1}, res.Counts)
	assert.Equal(t, 5, res.Counts.Total())

	require.Len(t, res.Failures, 2)

	first := res.Failures[0]
	assert.Equal(t, "Checkout with coupon", first.Name)
	assert.True(t, strings.HasPrefix(first.Reason, "java.lang.AssertionError"), first.Reason)
	assert.Contains(t, first.Trace, "CheckoutSteps.java:88")

	second := res.Failures[1]
	assert.Contains(t, second.Name, "Guest checkout")
	assert.Equal(t, "ElementNotFoundException: #pay", second.Reason)

	assert.Len(t, res.TopReasons, 2)
}

func TestScrapeFailureWithoutTrace(t *testing.T) {
	res, err := New(nil, DefaultOptions()).Scrape(strings.NewReader(`<div data-status="failed"></div>`))
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.UnnamedTest, res.Failures[0].Name)
	assert.Equal(t, models.UnknownFailure, res.Failures[0].Reason)
	assert.Empty(t, res.Failures[0].Trace)
}

func TestScrapeKeywordFallback(t *testing.T) {
	page := `<html><head><script>var s = "failed";</script></head><body>
		<p>3 scenarios Passed, 1 failed</p>
		<p>Checkout: PASSED</p>
		<p>1 skipped</p>
	</body></html>`

	res, err := New(nil, DefaultOptions()).Scrape(strings.NewReader(page))
	require.NoError(t, err)

	assert.Equal(t, models.ModeKeywords, res.Mode)
	assert.Equal(t, models.ConfidenceLow, res.Confidence)
	assert.Equal(t, models.Counts{"PASSED": 2, "FAILED": 1, "SKIPPED": 1}, res.Counts)
	assert.Empty(t, res.Failures)
}

func TestScrapeEmptyDocument(t *testing.T) {
	res, err := New(nil, DefaultOptions()).Scrape(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, models.ModeKeywords, res.Mode)
	assert.Zero(t, res.Counts.Total())
}

func TestCustomStatusAttribute(t *testing.T) {
	opts := DefaultOptions()
	opts.StatusAttr = "data-result"

	res, err := New(nil, opts).Scrape(strings.NewReader(`<li data-result="pass"></li><li data-status="fail"></li>`))
	require.NoError(t, err)

	assert.Equal(t, models.Counts{"PASSED": 1}, res.Counts)
}

func TestClassify(t *testing.T) {
	tests := map[string]string{
		"passed":  models.StatusPassed,
		"PASS":    models.StatusPassed,
		"skipped": models.StatusSkipped,
		"Failed":  models.StatusFailed,
		"undef":   models.StatusUnknown,
		"":        models.StatusUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, classify(in), in)
	}
}
