package baseline

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/moex-anomaly/models"
)

// seriesOf builds n consecutive weekday-agnostic days starting 2026-01-01
// style dates; dates only need to be ordered and unique for the window
// math, the calendar is not involved here.
func seriesOf(n int, build func(i int) (close, volume float64)) []models.TradingDay {
	series := make([]models.TradingDay, n)
	for i := 0; i < n; i++ {
		close, volume := build(i)
		series[i] = models.TradingDay{
			Symbol: "SBER",
			Date:   fmt.Sprintf("2026-01-%02d", i+1),
			Open:   close,
			High:   close + 1,
			Low:    close - 1,
			Close:  close,
			Volume: volume,
		}
	}
	return series
}

func TestCompute_InsufficientHistory(t *testing.T) {
	series := seriesOf(15, func(i int) (float64, float64) { return 100, 1000 })

	// Evaluation date after the series: only 15 prior days, need 20.
	_, err := Compute(series, "2026-01-31", 30, 20)
	require.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestCompute_EvaluationDayExcluded(t *testing.T) {
	// 30 flat days then one wild day; if the evaluation day leaked into
	// its own baseline the volume std would be nonzero.
	series := seriesOf(31, func(i int) (float64, float64) {
		if i == 30 {
			return 100, 99999
		}
		return 100, 1000
	})
	evalDate := series[30].Date

	b, err := Compute(series, evalDate, 30, 20)
	require.NoError(t, err)

	assert.Equal(t, 30, b.NObservations)
	assert.Equal(t, 1000.0, b.MeanVolume)
	assert.Equal(t, 0.0, b.StdVolume)
}

func TestCompute_WindowIsMostRecent(t *testing.T) {
	// 40 prior days: the first 10 have volume 5000, the last 30 volume
	// 1000. A window of 30 must only see the last 30.
	series := seriesOf(41, func(i int) (float64, float64) {
		if i < 10 {
			return 100, 5000
		}
		return 100, 1000
	})

	b, err := Compute(series, series[40].Date, 30, 20)
	require.NoError(t, err)

	assert.Equal(t, 30, b.NObservations)
	assert.Equal(t, 1000.0, b.MeanVolume)
}

func TestCompute_PopulationStd(t *testing.T) {
	// Volumes 1, 2, 3: population σ = sqrt(2/3), not the sample value 1.
	series := seriesOf(4, func(i int) (float64, float64) {
		return 100, float64(i + 1)
	})

	b, err := Compute(series[:3], series[3].Date, 3, 3)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, b.MeanVolume, 1e-9)
	assert.InDelta(t, math.Sqrt(2.0/3.0), b.StdVolume, 1e-9)
}

func TestCompute_ReturnsDeriveFromPredecessors(t *testing.T) {
	// Closes 100, 110, 99: returns +10% and -10%.
	closes := []float64{100, 110, 99}
	series := seriesOf(4, func(i int) (float64, float64) {
		if i < 3 {
			return closes[i], 1000
		}
		return 99, 1000
	})

	b, err := Compute(series[:3], series[3].Date, 3, 3)
	require.NoError(t, err)

	// Two return observations: 0.10 and -0.10.
	assert.InDelta(t, 0.0, b.MeanReturn, 1e-9)
	assert.InDelta(t, 0.10, b.StdReturn, 1e-9)
}

func TestPrevClose(t *testing.T) {
	series := seriesOf(3, func(i int) (float64, float64) {
		return 100 + float64(i), 1000
	})

	assert.Equal(t, 0.0, PrevClose(series, series[0].Date))
	assert.Equal(t, 100.0, PrevClose(series, series[1].Date))
	assert.Equal(t, 102.0, PrevClose(series, "2026-02-01"))
}
