package models

import (
	"time"
)

// Metric identifies which daily metric an anomaly was detected on.
type Metric string

const (
	MetricReturn Metric = "return"
	MetricVolume Metric = "volume"
	MetricRange  Metric = "range"
)

// Severity is the tiered classification of an anomaly.
type Severity string

const (
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// Report statuses. Exactly one of these ends an analysis run that produced
// a report.
const (
	StatusAnomaliesFound = "anomalies_found"
	StatusClean          = "clean"
)

// DateFormat is the wire and file-name format for trading dates.
const DateFormat = "2006-01-02"

// TradingDay represents one daily bar for a security. Immutable once
// cached for a past date; a force refresh is the only path that replaces
// it.
type TradingDay struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"` // YYYY-MM-DD
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	// Value is the ruble turnover reported by the exchange. Not scored
	// directly, used for the liquidity filter and report formatting.
	Value float64 `json:"value,omitempty"`
}

// RangePct is the intraday range normalized by the open price.
func (d TradingDay) RangePct() float64 {
	if d.Open == 0 {
		return 0
	}
	return (d.High - d.Low) / d.Open
}

// ReturnPct is the day-over-day close return given the previous close.
func ReturnPct(prevClose, close float64) float64 {
	if prevClose == 0 {
		return 0
	}
	return close/prevClose - 1
}

// Baseline holds trailing-window statistics for one symbol and evaluation
// date. The evaluation day itself is never part of its own baseline.
type Baseline struct {
	Symbol         string  `json:"symbol"`
	EvaluationDate string  `json:"evaluation_date"`
	WindowSize     int     `json:"window_size"`
	NObservations  int     `json:"n_observations"`
	MeanReturn     float64 `json:"mean_return"`
	StdReturn      float64 `json:"std_return"`
	MeanVolume     float64 `json:"mean_volume"`
	StdVolume      float64 `json:"std_volume"`
	MeanRange      float64 `json:"mean_range"`
	StdRange       float64 `json:"std_range"`
	// MeanValue is the average turnover over the window, used only by the
	// optional liquidity filter.
	MeanValue float64 `json:"mean_value,omitempty"`
}

// Anomaly is a single finding: one metric of one symbol on one date that
// deviated from its baseline by at least the moderate threshold.
type Anomaly struct {
	Symbol       string   `json:"symbol"`
	Date         string   `json:"date"`
	Metric       Metric   `json:"metric"`
	Observed     float64  `json:"observed_value"`
	BaselineMean float64  `json:"baseline_mean"`
	BaselineStd  float64  `json:"baseline_std"`
	ZScore       float64  `json:"z_score"`
	DeviationPct float64  `json:"deviation_percent"`
	Severity     Severity `json:"severity"`
}

// Report is the persisted result of one analysis run. Regenerating a
// report for the same date overwrites the previous one.
type Report struct {
	Date              string    `json:"date"`
	GeneratedAt       time.Time `json:"generated_at"`
	WindowSize        int       `json:"window_size"`
	MinPeriods        int       `json:"min_periods"`
	ThresholdModerate float64   `json:"threshold_moderate"`
	ThresholdHigh     float64   `json:"threshold_high"`
	SymbolsEvaluated  []string  `json:"symbols_evaluated"`
	SymbolsSkipped    []string  `json:"symbols_skipped,omitempty"`
	Anomalies         []Anomaly `json:"anomalies"`
	Status            string    `json:"status"`
}
