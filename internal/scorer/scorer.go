// Package scorer compares an evaluation day's observed metrics against
// its baseline and produces zero or more anomaly findings.
package scorer

import (
	"math"
	"sort"

	"github.com/Alias1177/moex-anomaly/models"
)

// Thresholds configures the severity tiers and the optional liquidity
// filters on the volume metric. Moderate must be strictly below High.
type Thresholds struct {
	Moderate float64
	High     float64

	// MinAvgValue drops volume findings for symbols whose average daily
	// turnover over the baseline window is below this amount. Zero
	// disables the filter.
	MinAvgValue float64

	// MinDeviationPct drops volume findings whose deviation from the
	// baseline mean is below this percentage. Zero disables the filter.
	MinDeviationPct float64
}

// Score computes z-scores for the day's return, volume and range against
// the baseline and returns findings ordered by descending |z|. prevClose
// is the close of the trading day immediately preceding the evaluation
// day in the cached series; pass 0 when there is none, which skips the
// return metric. Metrics with a zero-variance baseline are skipped: a
// z-score is undefined there, not infinite.
func Score(day models.TradingDay, prevClose float64, b *models.Baseline, t Thresholds) []models.Anomaly {
	var anomalies []models.Anomaly

	if prevClose > 0 {
		ret := models.ReturnPct(prevClose, day.Close)
		if a, ok := scoreMetric(day, models.MetricReturn, ret, b.MeanReturn, b.StdReturn, t); ok {
			anomalies = append(anomalies, a)
		}
	}
	if a, ok := scoreMetric(day, models.MetricVolume, day.Volume, b.MeanVolume, b.StdVolume, t); ok {
		if passesLiquidityFilters(a, b, t) {
			anomalies = append(anomalies, a)
		}
	}
	if a, ok := scoreMetric(day, models.MetricRange, day.RangePct(), b.MeanRange, b.StdRange, t); ok {
		anomalies = append(anomalies, a)
	}

	// Most extreme finding first; consumers rely on this ordering.
	sort.SliceStable(anomalies, func(i, j int) bool {
		return math.Abs(anomalies[i].ZScore) > math.Abs(anomalies[j].ZScore)
	})

	return anomalies
}

func scoreMetric(day models.TradingDay, metric models.Metric, observedValue, mean, std float64, t Thresholds) (models.Anomaly, bool) {
	if std == 0 {
		return models.Anomaly{}, false
	}

	z := (observedValue - mean) / std
	if math.Abs(z) < t.Moderate {
		return models.Anomaly{}, false
	}

	severity := models.SeverityModerate
	if math.Abs(z) >= t.High {
		severity = models.SeverityHigh
	}

	deviationPct := 0.0
	if mean != 0 {
		deviationPct = (observedValue - mean) / mean * 100
	}

	return models.Anomaly{
		Symbol:       day.Symbol,
		Date:         day.Date,
		Metric:       metric,
		Observed:     observedValue,
		BaselineMean: mean,
		BaselineStd:  std,
		ZScore:       z,
		DeviationPct: deviationPct,
		Severity:     severity,
	}, true
}

func passesLiquidityFilters(a models.Anomaly, b *models.Baseline, t Thresholds) bool {
	if t.MinAvgValue > 0 && b.MeanValue < t.MinAvgValue {
		return false
	}
	if t.MinDeviationPct > 0 && a.DeviationPct < t.MinDeviationPct {
		return false
	}
	return true
}
