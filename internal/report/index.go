package report

import (
	"html/template"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// indexTemplate renders the browsable list of reports served by the web
// viewer. One row per analyzed date, newest first.
var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>MOEX Anomaly Detector — Reports</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%);
            min-height: 100vh;
            color: #e0e0e0;
            padding: 20px;
        }
        .container { max-width: 900px; margin: 0 auto; }
        h1 { text-align: center; margin-bottom: 10px; color: #00d4ff; font-size: 2em; }
        .subtitle { text-align: center; color: #888; margin-bottom: 30px; }
        .stats { display: flex; justify-content: center; gap: 30px; margin-bottom: 30px; }
        .stat-box { background: rgba(255,255,255,0.05); border-radius: 10px; padding: 15px 25px; text-align: center; }
        .stat-number { font-size: 2em; font-weight: bold; color: #00d4ff; }
        .stat-label { color: #888; font-size: 0.9em; }
        .reports-list { background: rgba(255,255,255,0.03); border-radius: 15px; padding: 20px; }
        .report-item { display: flex; align-items: center; padding: 15px; border-bottom: 1px solid rgba(255,255,255,0.1); }
        .report-item:hover { background: rgba(255,255,255,0.05); }
        .report-item:last-child { border-bottom: none; }
        .report-date { font-size: 1.2em; font-weight: 600; color: #fff; width: 150px; }
        .report-links { display: flex; gap: 10px; margin-left: auto; }
        .report-link { padding: 8px 16px; border-radius: 6px; text-decoration: none; font-size: 0.9em; }
        .link-txt { background: #2d5016; color: #90EE90; }
        .link-json { background: #1e3a5f; color: #87CEEB; }
        .empty { text-align: center; color: #666; padding: 50px; }
        .refresh-info { text-align: center; color: #555; margin-top: 20px; font-size: 0.85em; }
    </style>
</head>
<body>
    <div class="container">
        <h1>MOEX Anomaly Detector</h1>
        <p class="subtitle">Daily statistical anomaly reports</p>

        <div class="stats">
            <div class="stat-box">
                <div class="stat-number">{{.TotalReports}}</div>
                <div class="stat-label">Reports</div>
            </div>
            <div class="stat-box">
                <div class="stat-number">{{.LastDate}}</div>
                <div class="stat-label">Latest</div>
            </div>
        </div>

        <div class="reports-list">
        {{- if .Dates}}
            {{- range .Dates}}
            <div class="report-item">
                <span class="report-date">{{.}}</span>
                <div class="report-links">
                    <a href="anomalies_{{.}}.txt" class="report-link link-txt">TXT</a>
                    <a href="anomalies_{{.}}.json" class="report-link link-json">JSON</a>
                </div>
            </div>
            {{- end}}
        {{- else}}
            <p class="empty">No reports yet. Run the detector first.</p>
        {{- end}}
        </div>

        <p class="refresh-info">Updated: {{.UpdatedAt}}</p>
    </div>
</body>
</html>
`))

type indexData struct {
	TotalReports int
	LastDate     string
	Dates        []string
	UpdatedAt    string
}

// WriteIndex regenerates index.html from the report files on disk so the
// static viewer always reflects the reports directory.
func (b *Builder) WriteIndex(now time.Time) error {
	matches, err := filepath.Glob(filepath.Join(b.dir, "anomalies_*.json"))
	if err != nil {
		return err
	}

	dates := make([]string, 0, len(matches))
	for _, m := range matches {
		dates = append(dates, dateFromFile(m))
	}
	// Newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	data := indexData{
		TotalReports: len(dates),
		Dates:        dates,
		LastDate:     "—",
		UpdatedAt:    now.Format("2006-01-02 15:04:05"),
	}
	if len(dates) > 0 {
		data.LastDate = dates[0]
	}

	var sb strings.Builder
	if err := indexTemplate.Execute(&sb, data); err != nil {
		return err
	}

	return b.writeAtomic(filepath.Join(b.dir, "index.html"), []byte(sb.String()))
}
