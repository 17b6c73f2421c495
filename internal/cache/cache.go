package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/moex-anomaly/models"
)

// Store is the durable per-symbol series cache: one JSON file per symbol
// under the data directory, days ordered ascending by date with no
// duplicates.
type Store struct {
	dir    string
	logger zerolog.Logger
}

// seriesFile is the on-disk layout of one symbol's cache file.
type seriesFile struct {
	Symbol string              `json:"symbol"`
	Days   []models.TradingDay `json:"days"`
}

// CorruptionError reports a cache file that could not be parsed. The
// store never fabricates data on this condition; the caller decides to
// quarantine and refetch.
type CorruptionError struct {
	Symbol string
	Path   string
	Err    error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("cache corrupted for %s (%s): %v", e.Symbol, e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// NewStore creates the cache store, creating the data directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: log.With().Str("component", "cache").Logger(),
	}, nil
}

func (s *Store) path(symbol string) string {
	return filepath.Join(s.dir, symbol+".json")
}

// Get returns the cached series for a symbol, ascending by date. An
// unseen symbol yields an empty series, not an error.
func (s *Store) Get(symbol string) ([]models.TradingDay, error) {
	data, err := os.ReadFile(s.path(symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache for %s: %w", symbol, err)
	}

	var file seriesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, &CorruptionError{Symbol: symbol, Path: s.path(symbol), Err: err}
	}

	return file.Days, nil
}

// Merge folds an incoming batch into the cached series and persists the
// result atomically. For each incoming day: if force is set or the date
// is not cached yet, the incoming day is stored; otherwise the cached
// value wins. The merged series is returned sorted ascending.
func (s *Store) Merge(symbol string, incoming []models.TradingDay, force bool) ([]models.TradingDay, error) {
	existing, err := s.Get(symbol)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]models.TradingDay, len(existing)+len(incoming))
	for _, d := range existing {
		byDate[d.Date] = d
	}

	added, replaced := 0, 0
	for _, d := range incoming {
		if _, cached := byDate[d.Date]; cached {
			if force {
				byDate[d.Date] = d
				replaced++
			}
			continue
		}
		byDate[d.Date] = d
		added++
	}

	merged := make([]models.TradingDay, 0, len(byDate))
	for _, d := range byDate {
		merged = append(merged, d)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date < merged[j].Date
	})

	if err := s.persist(symbol, merged); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("symbol", symbol).
		Int("added", added).
		Int("replaced", replaced).
		Int("total", len(merged)).
		Msg("Merged series")

	return merged, nil
}

// persist writes the series with write-temp-then-rename discipline so a
// crash never leaves a partial file behind.
func (s *Store) persist(symbol string, days []models.TradingDay) error {
	data, err := json.MarshalIndent(seriesFile{Symbol: symbol, Days: days}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache for %s: %w", symbol, err)
	}

	tmp, err := os.CreateTemp(s.dir, symbol+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing cache for %s: %w", symbol, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp cache file: %w", err)
	}

	if err := os.Rename(tmpName, s.path(symbol)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing cache for %s: %w", symbol, err)
	}

	return nil
}

// Quarantine renames a corrupted cache file aside so the next run starts
// from a clean refetch. Returns the quarantine path.
func (s *Store) Quarantine(symbol string) (string, error) {
	src := s.path(symbol)
	dst := fmt.Sprintf("%s.corrupt-%s", src, time.Now().Format("20060102T150405"))
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("quarantining cache for %s: %w", symbol, err)
	}
	s.logger.Warn().Str("symbol", symbol).Str("path", dst).Msg("Quarantined corrupted cache file")
	return dst, nil
}
