// Package baseline computes trailing-window statistics for one symbol and
// evaluation date. The evaluation day is never part of its own baseline.
package baseline

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/Alias1177/moex-anomaly/models"
)

// ErrInsufficientHistory is returned when fewer than minPeriods prior
// trading days exist. It is a valid "skip scoring" outcome, not a run
// failure: a thin history must never produce a false-confidence baseline.
var ErrInsufficientHistory = errors.New("insufficient history for baseline")

// Compute selects the windowSize most recent trading days strictly before
// evaluationDate from series (which must be sorted ascending by date) and
// returns their per-metric mean and population standard deviation.
func Compute(series []models.TradingDay, evaluationDate string, windowSize, minPeriods int) (*models.Baseline, error) {
	// Index of the first day >= evaluationDate; everything before it is
	// eligible baseline history.
	cut := sort.Search(len(series), func(i int) bool {
		return series[i].Date >= evaluationDate
	})

	if cut < minPeriods {
		return nil, ErrInsufficientHistory
	}

	lo := cut - windowSize
	if lo < 0 {
		lo = 0
	}
	window := series[lo:cut]

	var symbol string
	if len(series) > 0 {
		symbol = series[0].Symbol
	}

	returns := make([]float64, 0, len(window))
	volumes := make([]float64, 0, len(window))
	ranges := make([]float64, 0, len(window))
	values := make([]float64, 0, len(window))

	for i := lo; i < cut; i++ {
		d := series[i]
		volumes = append(volumes, d.Volume)
		ranges = append(ranges, d.RangePct())
		values = append(values, d.Value)
		// The first cached day has no predecessor, so no return.
		if i > 0 {
			returns = append(returns, models.ReturnPct(series[i-1].Close, d.Close))
		}
	}

	b := &models.Baseline{
		Symbol:         symbol,
		EvaluationDate: evaluationDate,
		WindowSize:     windowSize,
		NObservations:  len(window),
		MeanVolume:     stat.Mean(volumes, nil),
		StdVolume:      stat.PopStdDev(volumes, nil),
		MeanRange:      stat.Mean(ranges, nil),
		StdRange:       stat.PopStdDev(ranges, nil),
		MeanValue:      stat.Mean(values, nil),
	}
	if len(returns) > 0 {
		b.MeanReturn = stat.Mean(returns, nil)
		b.StdReturn = stat.PopStdDev(returns, nil)
	}

	return b, nil
}

// PrevClose returns the close of the trading day immediately preceding
// date in the series, or 0 when the series has no earlier day. The
// return metric of an evaluation day is derived from it.
func PrevClose(series []models.TradingDay, date string) float64 {
	idx := sort.Search(len(series), func(i int) bool {
		return series[i].Date >= date
	})
	if idx == 0 {
		return 0
	}
	return series[idx-1].Close
}
