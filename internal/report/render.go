package report

import (
	"fmt"
	"strings"

	"github.com/Alias1177/moex-anomaly/models"
)

const rule = "======================================================================"

// FormatValue renders a large number with a human scale suffix, the way
// the exchange turnover figures read in the reports.
func FormatValue(v float64) string {
	switch {
	case v >= 1_000_000_000:
		return fmt.Sprintf("%.1f bln", v/1_000_000_000)
	case v >= 1_000_000:
		return fmt.Sprintf("%.1f mln", v/1_000_000)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// metricValue renders an observed value appropriately for its metric:
// percentages for return and range, scaled counts for volume.
func metricValue(metric models.Metric, v float64) string {
	switch metric {
	case models.MetricVolume:
		return FormatValue(v)
	default:
		return fmt.Sprintf("%+.2f%%", v*100)
	}
}

// spreadValue renders a standard deviation, which carries no sign.
func spreadValue(metric models.Metric, v float64) string {
	if metric == models.MetricVolume {
		return FormatValue(v)
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

// RenderText produces the human-readable TXT rendering of a report.
func RenderText(r *models.Report) string {
	var b strings.Builder

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "TRADING ANOMALY REPORT")
	fmt.Fprintf(&b, "Analysis date: %s\n", r.Date)
	fmt.Fprintf(&b, "Baseline window: %d trading days (min %d)\n", r.WindowSize, r.MinPeriods)
	fmt.Fprintf(&b, "Thresholds: moderate %.1fσ, high %.1fσ\n", r.ThresholdModerate, r.ThresholdHigh)
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b)

	if len(r.Anomalies) > 0 {
		fmt.Fprintf(&b, "Anomalies found: %d\n\n", len(r.Anomalies))
		for i, a := range r.Anomalies {
			fmt.Fprintf(&b, "[%d] %s — %s (%s)\n", i+1, a.Symbol, a.Metric, a.Severity)
			fmt.Fprintf(&b, "    Observed: %s\n", metricValue(a.Metric, a.Observed))
			fmt.Fprintf(&b, "    Baseline: %s (σ %s)\n",
				metricValue(a.Metric, a.BaselineMean), spreadValue(a.Metric, a.BaselineStd))
			fmt.Fprintf(&b, "    Z-score: %+.2f\n", a.ZScore)
			fmt.Fprintf(&b, "    Deviation: %+.1f%%\n", a.DeviationPct)
			fmt.Fprintln(&b)
		}
	} else {
		fmt.Fprintln(&b, "No anomalies detected")
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "Statistics:")
	fmt.Fprintf(&b, "- Symbols evaluated: %d\n", len(r.SymbolsEvaluated))
	fmt.Fprintf(&b, "- Anomalies found: %d\n", len(r.Anomalies))
	if len(r.SymbolsSkipped) > 0 {
		fmt.Fprintf(&b, "- Skipped (insufficient history): %s\n", strings.Join(r.SymbolsSkipped, ", "))
	}
	fmt.Fprintln(&b, rule)

	return b.String()
}
