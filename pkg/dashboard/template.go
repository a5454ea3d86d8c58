package dashboard

// templateString is the dashboard page. Chart data is emitted in a script
// context, where html/template encodes it as JSON.
const templateString = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{with .Options.Title}}{{.}}{{else}}QA Dashboard{{end}}</title>
{{with .Options.ChartJSURL}}<script src="{{.}}"></script>{{end}}
<style>
:root { --primary: #1e40af; --success: #059669; --danger: #dc2626; --warning: #d97706; }
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #f3f4f6; color: #111827; margin: 0; }
header { background: linear-gradient(90deg, #1e3a8a, #2563eb); color: white; padding: 1.5rem 2rem; }
header h1 { margin: 0; font-size: 28px; font-weight: 600; }
.container { max-width: 1200px; margin: 0 auto; padding: 1.5rem; }
.row { display: flex; gap: 1.5rem; margin-bottom: 1.5rem; flex-wrap: wrap; }
.card { flex: 1 1 400px; background: white; border-radius: 12px; box-shadow: 0 4px 6px rgba(0, 0, 0, 0.1); padding: 1.5rem; }
.card.summary { flex: 0 0 320px; }
.card h3 { margin-top: 0; padding-bottom: 10px; border-bottom: 2px solid #e5e7eb; }
.total { font-size: 36px; font-weight: bold; color: var(--primary); text-align: center; }
.metric { display: flex; align-items: center; padding: 0.6rem 0.8rem; border-radius: 8px; margin-bottom: 0.5rem; }
.metric .value { margin-left: auto; font-weight: 600; }
.badge { padding: 2px 10px; border-radius: 999px; font-size: 14px; color: white; }
.badge.green { background: var(--success); }
.badge.red { background: var(--danger); }
.badge.orange { background: var(--warning); }
.health { font-weight: 600; }
ul { list-style: none; padding: 0; margin: 0; }
li { padding: 0.5rem 0; border-bottom: 1px solid #f3f4f6; }
li:last-child { border-bottom: none; }
pre { white-space: pre-wrap; background: #111827; color: #e5e7eb; padding: 0.8rem; border-radius: 8px; font-size: 12px; }
.hint { background: #eff6ff; border-left: 4px solid var(--primary); padding: 0.6rem 0.8rem; margin-bottom: 0.6rem; border-radius: 4px; }
.chart-container { min-height: 300px; position: relative; }
</style>
</head>
<body>
<header><h1>{{with .Options.Title}}{{.}}{{else}}QA Dashboard{{end}}</h1></header>
<div class="container">
<div class="row">
  <div class="card summary">
    <h3>Executive Summary</h3>
    <div class="total">{{.Metrics.Total}}</div>
    <div style="text-align:center;color:#6b7280;font-size:14px;margin-bottom:1rem">Total Tests</div>
    <div class="metric" style="background:#f0fdf4"><span class="badge green">Passed</span><span class="value" style="color:var(--success)">{{.Metrics.Passed}}</span></div>
    <div class="metric" style="background:#fef2f2"><span class="badge red">Failed</span><span class="value" style="color:var(--danger)">{{.Metrics.Failed}}</span></div>
    <div class="metric" style="background:#fffbeb"><span class="badge orange">Skipped</span><span class="value" style="color:var(--warning)">{{.Metrics.Skipped}}</span></div>
    <div style="margin-top:0.5rem;padding-top:1rem;border-top:1px solid rgba(0,0,0,0.05)">
      <div class="metric"><div>Pass Rate</div><div class="value" style="color:var(--success)">{{formatRate .PassRate}}%</div></div>
      <div class="metric"><div>Health Score</div><div class="value" style="color:var(--primary)">{{formatRate .HealthScore}}/100</div></div>
      <div class="metric"><div>Health</div><div class="value health">{{.Summary.HealthStatus}}</div></div>
    </div>
  </div>

  <div class="card">
    <h3>Top Failure Reasons</h3>
    <div class="chart-container"><canvas id="reasonsChart"></canvas></div>
  </div>
</div>

<div class="row">
  <div class="card">
    <h3>Key Insights</h3>
    <ul>{{range .Summary.KeyInsights}}<li>{{.}}</li>{{end}}</ul>
    <p><b>Recommendation:</b> {{.Summary.Recommendation}}</p>
  </div>
</div>

<div class="row">
  <div class="card">
    <h3>Top Failing Tests</h3>
    <ul>{{range .Tests}}
      <li><details><summary>{{.Name}} — {{.Count}} failures</summary><pre>{{.Trace}}</pre></details></li>{{else}}
      <li>No failing tests.</li>{{end}}
    </ul>
  </div>
  <div class="card">
    <h3>Recurring Failures</h3>
    {{if .Recurring}}<ul>{{range .Recurring}}
      <li><b>{{.Test}}</b> failed in {{.Occurrences}} files</li>{{end}}
    </ul>{{else}}<div>No recurring failures detected across parsed files.</div>{{end}}
    <hr>
    <h3>Quick Suggested Actions</h3>
    {{range .Recommendations}}<div class="hint"><b>{{.Reason}}</b><div>{{.Suggestion}}</div></div>
    {{else}}<div>No automated suggestions available.</div>{{end}}
  </div>
</div>
</div>

<script>
(function () {
  if (typeof Chart === 'undefined') { return; }
  const ctx = document.getElementById('reasonsChart').getContext('2d');
  new Chart(ctx, {
    type: 'bar',
    data: {
      labels: {{.ChartLabels}},
      datasets: [{
        data: {{.ChartCounts}},
        backgroundColor: '#3b82f6',
        borderRadius: 6,
        maxBarThickness: 30
      }]
    },
    options: {
      responsive: true,
      maintainAspectRatio: false,
      indexAxis: 'y',
      scales: { x: { beginAtZero: true, ticks: { precision: 0 } } },
      plugins: { legend: { display: false } }
    }
  });
})();
</script>
</body>
</html>
`
