package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/moex-anomaly/models"
)

func day(symbol, date string, close, volume float64) models.TradingDay {
	return models.TradingDay{
		Symbol: symbol,
		Date:   date,
		Open:   close - 1,
		High:   close + 2,
		Low:    close - 2,
		Close:  close,
		Volume: volume,
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestGet_UnseenSymbolIsEmpty(t *testing.T) {
	store := newTestStore(t)

	series, err := store.Get("SBER")
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestMerge_SortsAndPersists(t *testing.T) {
	store := newTestStore(t)

	merged, err := store.Merge("SBER", []models.TradingDay{
		day("SBER", "2026-01-14", 102, 1000),
		day("SBER", "2026-01-12", 100, 900),
		day("SBER", "2026-01-13", 101, 950),
	}, false)
	require.NoError(t, err)

	require.Len(t, merged, 3)
	assert.Equal(t, "2026-01-12", merged[0].Date)
	assert.Equal(t, "2026-01-13", merged[1].Date)
	assert.Equal(t, "2026-01-14", merged[2].Date)

	// Survives a reload.
	reloaded, err := store.Get("SBER")
	require.NoError(t, err)
	assert.Equal(t, merged, reloaded)
}

func TestMerge_Idempotent(t *testing.T) {
	store := newTestStore(t)

	batch := []models.TradingDay{
		day("SBER", "2026-01-12", 100, 900),
		day("SBER", "2026-01-13", 101, 950),
	}

	first, err := store.Merge("SBER", batch, false)
	require.NoError(t, err)
	second, err := store.Merge("SBER", batch, false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMerge_ExistingValueWinsWithoutForce(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Merge("SBER", []models.TradingDay{day("SBER", "2026-01-12", 100, 900)}, false)
	require.NoError(t, err)

	// Same date, different values: cached value must be retained and the
	// series length unchanged.
	merged, err := store.Merge("SBER", []models.TradingDay{day("SBER", "2026-01-12", 200, 5000)}, false)
	require.NoError(t, err)

	require.Len(t, merged, 1)
	assert.Equal(t, 100.0, merged[0].Close)
	assert.Equal(t, 900.0, merged[0].Volume)
}

func TestMerge_ForceReplacesCachedDay(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Merge("SBER", []models.TradingDay{day("SBER", "2026-01-12", 100, 900)}, false)
	require.NoError(t, err)

	incoming := day("SBER", "2026-01-12", 200, 5000)
	merged, err := store.Merge("SBER", []models.TradingDay{incoming}, true)
	require.NoError(t, err)

	require.Len(t, merged, 1)
	assert.Equal(t, incoming, merged[0])
}

func TestGet_CorruptedFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "SBER.json"), []byte("{not json"), 0o644))

	_, err = store.Get("SBER")
	require.Error(t, err)

	var corrupt *CorruptionError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "SBER", corrupt.Symbol)
}

func TestQuarantine_MovesFileAside(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "SBER.json"), []byte("{not json"), 0o644))

	moved, err := store.Quarantine("SBER")
	require.NoError(t, err)
	assert.FileExists(t, moved)
	assert.NoFileExists(t, filepath.Join(dir, "SBER.json"))

	// A fresh merge starts clean after quarantine.
	merged, err := store.Merge("SBER", []models.TradingDay{day("SBER", "2026-01-12", 100, 900)}, false)
	require.NoError(t, err)
	assert.Len(t, merged, 1)
}

func TestLock_SecondAcquisitionFails(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Lock())
	defer store.Unlock()

	err := store.Lock()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
}

func TestLock_ReleasedLockCanBeReacquired(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Lock())
	store.Unlock()
	require.NoError(t, store.Lock())
	store.Unlock()
}

func TestPersist_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	_, err = store.Merge("SBER", []models.TradingDay{day("SBER", "2026-01-12", 100, 900)}, false)
	require.NoError(t, err)

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
