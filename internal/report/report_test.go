package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/moex-anomaly/models"
)

var testParams = Params{
	WindowSize:        30,
	MinPeriods:        20,
	ThresholdModerate: 2.0,
	ThresholdHigh:     3.0,
}

func anomaly(symbol string, metric models.Metric, z float64) models.Anomaly {
	severity := models.SeverityModerate
	if z >= 3.0 || z <= -3.0 {
		severity = models.SeverityHigh
	}
	return models.Anomaly{
		Symbol:   symbol,
		Date:     "2026-02-02",
		Metric:   metric,
		ZScore:   z,
		Severity: severity,
	}
}

func TestBuild_OrderingAndStatus(t *testing.T) {
	perSymbol := map[string][]models.Anomaly{
		"SBER": {anomaly("SBER", models.MetricReturn, 2.5)},
		"GAZP": {
			anomaly("GAZP", models.MetricVolume, -4.0),
			anomaly("GAZP", models.MetricRange, 2.5),
		},
		"LKOH": {},
	}

	r := Build("2026-02-02", time.Now(), testParams, perSymbol, nil)

	assert.Equal(t, models.StatusAnomaliesFound, r.Status)
	assert.Equal(t, []string{"GAZP", "LKOH", "SBER"}, r.SymbolsEvaluated)

	require.Len(t, r.Anomalies, 3)
	// |−4.0| first, then the two 2.5s tie-broken by symbol name.
	assert.Equal(t, "GAZP", r.Anomalies[0].Symbol)
	assert.Equal(t, models.MetricVolume, r.Anomalies[0].Metric)
	assert.Equal(t, "GAZP", r.Anomalies[1].Symbol)
	assert.Equal(t, "SBER", r.Anomalies[2].Symbol)
}

func TestBuild_CleanStatus(t *testing.T) {
	perSymbol := map[string][]models.Anomaly{"SBER": {}, "GAZP": nil}

	r := Build("2026-02-02", time.Now(), testParams, perSymbol, []string{"LKOH"})

	assert.Equal(t, models.StatusClean, r.Status)
	assert.Empty(t, r.Anomalies)
	assert.Equal(t, []string{"LKOH"}, r.SymbolsSkipped)
}

func TestSave_IsIdempotent(t *testing.T) {
	b, err := NewBuilder(t.TempDir())
	require.NoError(t, err)

	generatedAt := time.Date(2026, 2, 2, 19, 0, 0, 0, time.UTC)
	perSymbol := map[string][]models.Anomaly{
		"SBER": {anomaly("SBER", models.MetricReturn, 4.25)},
	}
	r := Build("2026-02-02", generatedAt, testParams, perSymbol, nil)

	require.NoError(t, b.Save(r))
	first, err := os.ReadFile(b.JSONPath("2026-02-02"))
	require.NoError(t, err)

	// Rebuilding from the same inputs and saving again must produce
	// byte-identical output.
	r2 := Build("2026-02-02", generatedAt, testParams, perSymbol, nil)
	require.NoError(t, b.Save(r2))
	second, err := os.ReadFile(b.JSONPath("2026-02-02"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.FileExists(t, b.TextPath("2026-02-02"))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	b, err := NewBuilder(t.TempDir())
	require.NoError(t, err)

	r := Build("2026-02-02", time.Date(2026, 2, 2, 19, 0, 0, 0, time.UTC), testParams,
		map[string][]models.Anomaly{"SBER": {anomaly("SBER", models.MetricVolume, 3.1)}}, nil)
	require.NoError(t, b.Save(r))

	loaded, err := b.Load("2026-02-02")
	require.NoError(t, err)
	assert.Equal(t, r.Date, loaded.Date)
	assert.Equal(t, r.Status, loaded.Status)
	require.Len(t, loaded.Anomalies, 1)
	assert.Equal(t, models.MetricVolume, loaded.Anomalies[0].Metric)
}

func TestLatest(t *testing.T) {
	b, err := NewBuilder(t.TempDir())
	require.NoError(t, err)

	latest, err := b.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest)

	for _, date := range []string{"2026-01-30", "2026-02-02", "2026-01-29"} {
		r := Build(date, time.Now(), testParams, map[string][]models.Anomaly{}, nil)
		require.NoError(t, b.Save(r))
	}

	latest, err = b.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2026-02-02", latest.Date)
}

func TestSave_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	b, err := NewBuilder(dir)
	require.NoError(t, err)

	r := Build("2026-02-02", time.Now(), testParams, map[string][]models.Anomaly{}, nil)
	require.NoError(t, b.Save(r))

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestRenderText(t *testing.T) {
	a := anomaly("SBER", models.MetricReturn, 4.25)
	a.Observed = 0.035
	a.BaselineMean = 0.001
	a.BaselineStd = 0.008
	a.DeviationPct = 3400

	r := Build("2026-02-02", time.Now(), testParams,
		map[string][]models.Anomaly{"SBER": {a}}, []string{"GAZP"})

	text := RenderText(r)
	assert.Contains(t, text, "TRADING ANOMALY REPORT")
	assert.Contains(t, text, "Analysis date: 2026-02-02")
	assert.Contains(t, text, "[1] SBER — return (high)")
	assert.Contains(t, text, "Observed: +3.50%")
	assert.Contains(t, text, "Z-score: +4.25")
	assert.Contains(t, text, "Skipped (insufficient history): GAZP")
}

func TestRenderText_Clean(t *testing.T) {
	r := Build("2026-02-02", time.Now(), testParams, map[string][]models.Anomaly{"SBER": {}}, nil)

	text := RenderText(r)
	assert.Contains(t, text, "No anomalies detected")
	assert.Contains(t, text, "Symbols evaluated: 1")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "2.5 bln", FormatValue(2_500_000_000))
	assert.Equal(t, "14.1 mln", FormatValue(14_100_000))
	assert.Equal(t, "950000", FormatValue(950_000))
}

func TestWriteIndex(t *testing.T) {
	dir := t.TempDir()
	b, err := NewBuilder(dir)
	require.NoError(t, err)

	for _, date := range []string{"2026-01-30", "2026-02-02"} {
		r := Build(date, time.Now(), testParams, map[string][]models.Anomaly{}, nil)
		require.NoError(t, b.Save(r))
	}

	require.NoError(t, b.WriteIndex(time.Date(2026, 2, 2, 19, 0, 0, 0, time.UTC)))

	html, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)

	// Newest date listed before the older one.
	content := string(html)
	assert.Contains(t, content, "anomalies_2026-02-02.json")
	assert.Contains(t, content, "anomalies_2026-01-30.txt")
	assert.Less(t,
		strings.Index(content, "2026-02-02"),
		strings.Index(content, "2026-01-30"),
		"dates must be listed newest first")
}
