// Package report assembles anomaly findings into the persisted per-date
// report consumed by the notifier and the web viewer.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/moex-anomaly/models"
)

// Params carries the analysis configuration recorded in report metadata.
type Params struct {
	WindowSize        int
	MinPeriods        int
	ThresholdModerate float64
	ThresholdHigh     float64
}

// PersistenceError reports a failed report write. The run must abort
// before any notifier call on this error: a report that claims success
// but was never written is worse than a visible crash.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting report %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Builder builds and persists reports in the reports directory.
type Builder struct {
	dir    string
	logger zerolog.Logger
}

// NewBuilder creates the report builder, creating the reports directory
// if needed.
func NewBuilder(dir string) (*Builder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating reports dir: %w", err)
	}
	return &Builder{
		dir:    dir,
		logger: log.With().Str("component", "report").Logger(),
	}, nil
}

// Build concatenates per-symbol findings into one deterministic report:
// ordered by descending |z|, then symbol name, then metric. Status is
// "anomalies_found" when any finding survived, "clean" otherwise.
func Build(date string, generatedAt time.Time, params Params, perSymbol map[string][]models.Anomaly, skipped []string) *models.Report {
	evaluated := make([]string, 0, len(perSymbol))
	var anomalies []models.Anomaly
	for symbol, found := range perSymbol {
		evaluated = append(evaluated, symbol)
		anomalies = append(anomalies, found...)
	}
	sort.Strings(evaluated)

	sort.SliceStable(anomalies, func(i, j int) bool {
		zi, zj := math.Abs(anomalies[i].ZScore), math.Abs(anomalies[j].ZScore)
		if zi != zj {
			return zi > zj
		}
		if anomalies[i].Symbol != anomalies[j].Symbol {
			return anomalies[i].Symbol < anomalies[j].Symbol
		}
		return anomalies[i].Metric < anomalies[j].Metric
	})

	status := models.StatusClean
	if len(anomalies) > 0 {
		status = models.StatusAnomaliesFound
	}

	skippedSorted := append([]string(nil), skipped...)
	sort.Strings(skippedSorted)

	return &models.Report{
		Date:              date,
		GeneratedAt:       generatedAt,
		WindowSize:        params.WindowSize,
		MinPeriods:        params.MinPeriods,
		ThresholdModerate: params.ThresholdModerate,
		ThresholdHigh:     params.ThresholdHigh,
		SymbolsEvaluated:  evaluated,
		SymbolsSkipped:    skippedSorted,
		Anomalies:         anomalies,
		Status:            status,
	}
}

// JSONPath returns the date-addressable JSON file name for a date.
func (b *Builder) JSONPath(date string) string {
	return filepath.Join(b.dir, "anomalies_"+date+".json")
}

// TextPath returns the date-addressable TXT file name for a date.
func (b *Builder) TextPath(date string) string {
	return filepath.Join(b.dir, "anomalies_"+date+".txt")
}

// Save persists the report as JSON plus a human-readable TXT rendering,
// each with write-temp-then-rename discipline. Saving a date that already
// has a report overwrites it.
func (b *Builder) Save(r *models.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return &PersistenceError{Path: b.JSONPath(r.Date), Err: err}
	}
	if err := b.writeAtomic(b.JSONPath(r.Date), data); err != nil {
		return err
	}
	if err := b.writeAtomic(b.TextPath(r.Date), []byte(RenderText(r))); err != nil {
		return err
	}

	b.logger.Info().
		Str("date", r.Date).
		Str("status", r.Status).
		Int("anomalies", len(r.Anomalies)).
		Msg("Report persisted")

	return nil
}

func (b *Builder) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(b.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: path, Err: err}
	}
	return nil
}

// Load reads the persisted report for a date.
func (b *Builder) Load(date string) (*models.Report, error) {
	data, err := os.ReadFile(b.JSONPath(date))
	if err != nil {
		return nil, fmt.Errorf("reading report for %s: %w", date, err)
	}
	var r models.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report for %s: %w", date, err)
	}
	return &r, nil
}

// Latest returns the most recent persisted report, or nil when the
// reports directory holds none.
func (b *Builder) Latest() (*models.Report, error) {
	matches, err := filepath.Glob(filepath.Join(b.dir, "anomalies_*.json"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Strings(matches)
	newest := matches[len(matches)-1]

	date := dateFromFile(newest)
	return b.Load(date)
}

func dateFromFile(path string) string {
	base := filepath.Base(path)
	base = base[len("anomalies_"):]
	return base[:len(base)-len(filepath.Ext(base))]
}
