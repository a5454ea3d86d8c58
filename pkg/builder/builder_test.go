package builder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lirany1/cucumber-insights/pkg/config"
	"github.com/lirany1/cucumber-insights/pkg/locator"
	"github.com/lirany1/cucumber-insights/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const structuredReport = `<html><head><script>
window.CUCUMBER_MESSAGES = [
  {"pickle": {"id": "p1", "name": "Pay by card"}},
  {"pickle": {"id": "p2", "name": "Pay by voucher"}},
  {"testCaseStarted": {"id": "s1", "pickleId": "p1"}},
  {"testStepFinished": {"testCaseStartedId": "s1", "testStepResult": {"status": "FAILED", "message": "TimeoutError: gateway slow"}}},
  {"testCaseStarted": {"id": "s2", "pickleId": "p2"}},
  {"testStepFinished": {"testCaseStartedId": "s2", "testStepResult": {"status": "PASSED"}}}
];
</script></head><body></body></html>`

const domReport = `<html><body>
  <div data-status="passed" data-name="Login"></div>
  <div data-status="skipped" data-name="Logout"></div>
  <div data-status="failed" data-name="Pay by card"><pre>TimeoutError: gateway slow</pre></div>
</body></html>`

type fakeRecorder struct {
	ids    []string
	source string
	err    error
}

func (f *fakeRecorder) SaveRun(id, source string, at time.Time, agg *models.Aggregate) error {
	f.ids = append(f.ids, id)
	f.source = source
	return f.err
}

func writeReports(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func TestBuildDirectory(t *testing.T) {
	root := writeReports(t, map[string]string{
		"a.html":           structuredReport,
		"nested/b.html":    domReport,
		"c.html":           structuredReport,
		"ignored.json":     `{}`,
		"nested/readme.md": "x",
	})

	agg, err := NewReportBuilder(config.NewConfig(), nil).Build(root)
	require.NoError(t, err)

	assert.Equal(t, 3, agg.FilesParsed)
	assert.Equal(t, models.Counts{"PASSED": 3, "FAILED": 3, "SKIPPED": 1}, agg.Counts)
	assert.Equal(t, agg.Counts.Total(), agg.Total)
	assert.Equal(t, 3, agg.Passed)
	assert.Equal(t, 3, agg.Failed)
	assert.Equal(t, 1, agg.Skipped)
	assert.Equal(t, models.Counts{"PASSED": 2, "FAILED": 2}, agg.StepCounts)

	sum := 0
	for _, f := range agg.Files {
		sum += f.Failures
	}
	assert.Equal(t, sum, len(agg.Failures))
	assert.Equal(t, len(agg.Failures), agg.TotalFailures)

	files := make([]string, 0, len(agg.Failures))
	for _, f := range agg.Failures {
		files = append(files, f.File)
		assert.Equal(t, "Pay by card", f.Name)
		assert.Equal(t, "TimeoutError: gateway slow", f.Reason)
	}
	// sorted path order: a.html, c.html, nested/b.html
	assert.Equal(t, []string{"a.html", "c.html", "b.html"}, files)

	require.Len(t, agg.Files, 3)
	assert.Equal(t, models.ModeStructured, agg.Files[0].Mode)
	assert.Equal(t, models.ModeDOM, agg.Files[2].Mode)
	assert.Equal(t, models.ConfidenceMedium, agg.Files[2].Confidence)

	assert.Equal(t, []models.ReasonCount{{Reason: "TimeoutError: gateway slow", Count: 3}}, agg.TopFailureReasons)
}

func TestBuildFilesParsedMatchesFileCount(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"1.html", "2.html", "3.html", "4.html"} {
		files[name] = domReport
	}
	root := writeReports(t, files)

	agg, err := NewReportBuilder(nil, nil).Build(root)
	require.NoError(t, err)

	assert.Equal(t, 4, agg.FilesParsed)
	assert.Len(t, agg.Failures, 4)
}

func TestBuildRecordsHistory(t *testing.T) {
	root := writeReports(t, map[string]string{"a.html": structuredReport})
	rec := &fakeRecorder{}

	_, err := NewReportBuilder(nil, rec).Build(root)
	require.NoError(t, err)

	require.Len(t, rec.ids, 1)
	assert.Len(t, rec.ids[0], 36)
	assert.Equal(t, root, rec.source)
}

func TestBuildIgnoresHistoryErrors(t *testing.T) {
	root := writeReports(t, map[string]string{"a.html": structuredReport})
	rec := &fakeRecorder{err: errors.New("disk full")}

	agg, err := NewReportBuilder(nil, rec).Build(root)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.FilesParsed)
}

func TestBuildMissingInput(t *testing.T) {
	_, err := NewReportBuilder(nil, nil).Build(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, locator.ErrNoInput)
}

func TestBuildNestedMessagesProperty(t *testing.T) {
	root := writeReports(t, map[string]string{
		"a.html": `<html><script>render({"messages": [
			{"pickle": {"id": "p1", "name": "Login", "tags": []}},
			{"testCaseStarted": {"id": "s1", "pickleId": "p1"}},
			{"testStepFinished": {"testCaseStartedId": "s1", "testStepResult": {"status": "FAILED", "message": "TimeoutError: slow"}}}
		], "meta": {}});</script></html>`,
	})

	agg, err := NewReportBuilder(nil, nil).Build(root)
	require.NoError(t, err)
	assert.Equal(t, models.Counts{"FAILED": 1}, agg.Counts)
	require.Len(t, agg.Failures, 1)
	assert.Equal(t, "Login", agg.Failures[0].Name)
	assert.Equal(t, models.ModeStructured, agg.Files[0].Mode)
}

func TestBuildAbortsOnBrokenPayload(t *testing.T) {
	root := writeReports(t, map[string]string{
		"a.html": structuredReport,
		"b.html": `<script>window.CUCUMBER_MESSAGES = [{"pickle": oops}];</script>`,
	})

	_, err := NewReportBuilder(nil, nil).Build(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.html")
}

func TestBuildFromPathsReadError(t *testing.T) {
	_, err := NewReportBuilder(nil, nil).BuildFromPaths([]string{filepath.Join(t.TempDir(), "gone.html")})
	assert.Error(t, err)
}
