// Package orchestrator sequences the pipeline: cache reconciliation,
// baseline computation, scoring and report persistence. It owns the two
// invocation modes (bulk backfill, single-day analysis) and resolves the
// default evaluation date; nothing below it reads the wall clock.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/moex-anomaly/internal/baseline"
	"github.com/Alias1177/moex-anomaly/internal/cache"
	"github.com/Alias1177/moex-anomaly/internal/config"
	"github.com/Alias1177/moex-anomaly/internal/market"
	"github.com/Alias1177/moex-anomaly/internal/notify"
	"github.com/Alias1177/moex-anomaly/internal/report"
	"github.com/Alias1177/moex-anomaly/internal/scorer"
	"github.com/Alias1177/moex-anomaly/models"
)

// Fetcher retrieves daily bars for a symbol and date range from the
// market-data source.
type Fetcher interface {
	History(ctx context.Context, symbol, from, till string) ([]models.TradingDay, error)
}

// Orchestrator wires the pipeline components together.
type Orchestrator struct {
	cfg      *config.Config
	store    *cache.Store
	fetcher  Fetcher
	reports  *report.Builder
	notifier notify.Notifier
	now      func() time.Time
	logger   zerolog.Logger
}

// Options collects the dependencies of an Orchestrator. Notifier may be
// nil (backfill mode, or notifications not configured). Now defaults to
// time.Now and exists so tests can inject a clock.
type Options struct {
	Config   *config.Config
	Store    *cache.Store
	Fetcher  Fetcher
	Reports  *report.Builder
	Notifier notify.Notifier
	Now      func() time.Time
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		cfg:      opts.Config,
		store:    opts.Store,
		fetcher:  opts.Fetcher,
		reports:  opts.Reports,
		notifier: opts.Notifier,
		now:      opts.Now,
		logger:   log.With().Str("component", "orchestrator").Logger(),
	}
}

// DefaultDate resolves the implicit evaluation date: the trading day
// before now.
func (o *Orchestrator) DefaultDate() string {
	return market.PrevTradingDay(o.now()).Format(models.DateFormat)
}

// Backfill fetches a contiguous historical range ending on the previous
// trading day for every configured symbol and merges it into the cache.
// No scoring and no notification happen in this mode.
func (o *Orchestrator) Backfill(ctx context.Context, days int) error {
	if days < 1 {
		return fmt.Errorf("backfill: days must be >= 1, got %d", days)
	}

	if err := o.store.Lock(); err != nil {
		return err
	}
	defer o.store.Unlock()

	end := market.PrevTradingDay(o.now())
	dates := market.TradingDates(end, days)
	from, till := dates[0], dates[len(dates)-1]

	o.logger.Info().
		Str("from", from).
		Str("till", till).
		Int("days", days).
		Msg("Backfill started")

	for _, symbol := range o.cfg.Symbols {
		fetched, err := o.fetcher.History(ctx, symbol, from, till)
		if err != nil {
			return fmt.Errorf("backfill %s: %w", symbol, err)
		}

		merged, err := o.mergeWithRecovery(symbol, fetched, false)
		if err != nil {
			return fmt.Errorf("backfill %s: %w", symbol, err)
		}

		o.logger.Info().
			Str("symbol", symbol).
			Int("fetched", len(fetched)).
			Int("cached", len(merged)).
			Msg("Backfilled symbol")
	}

	return nil
}

// Analyze scores one evaluation date for every configured symbol, builds
// and persists the report, regenerates the viewer index and hands the
// report to the notifier. The terminal state is exactly one of: report
// persisted with anomalies, report persisted clean, error with no report
// written.
func (o *Orchestrator) Analyze(ctx context.Context, date string, force bool) (*models.Report, error) {
	if date == "" {
		date = o.DefaultDate()
	}
	evalDay, err := time.Parse(models.DateFormat, date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	if err := o.store.Lock(); err != nil {
		return nil, err
	}
	defer o.store.Unlock()

	thresholds := scorer.Thresholds{
		Moderate:        o.cfg.ThresholdModerate,
		High:            o.cfg.ThresholdHigh,
		MinAvgValue:     o.cfg.MinAvgValue,
		MinDeviationPct: o.cfg.MinDeviationPct,
	}

	perSymbol := make(map[string][]models.Anomaly, len(o.cfg.Symbols))
	var skipped []string

	for _, symbol := range o.cfg.Symbols {
		series, err := o.ensureSeries(ctx, symbol, evalDay, date, force)
		if err != nil {
			return nil, err
		}

		day, found := findDay(series, date)
		if !found {
			// No bar even after fetching: a holiday or a suspension.
			o.logger.Warn().Str("symbol", symbol).Str("date", date).Msg("No bar for evaluation date, skipping")
			skipped = append(skipped, symbol)
			continue
		}

		base, err := baseline.Compute(series, date, o.cfg.WindowSize, o.cfg.MinPeriods)
		if err != nil {
			if errors.Is(err, baseline.ErrInsufficientHistory) {
				o.logger.Warn().Str("symbol", symbol).Str("date", date).Msg("Insufficient history, skipping")
				skipped = append(skipped, symbol)
				continue
			}
			return nil, fmt.Errorf("baseline for %s: %w", symbol, err)
		}

		findings := scorer.Score(day, baseline.PrevClose(series, date), base, thresholds)
		perSymbol[symbol] = findings
	}

	r := report.Build(date, o.now(), report.Params{
		WindowSize:        o.cfg.WindowSize,
		MinPeriods:        o.cfg.MinPeriods,
		ThresholdModerate: o.cfg.ThresholdModerate,
		ThresholdHigh:     o.cfg.ThresholdHigh,
	}, perSymbol, skipped)

	// Persist before any notifier call; a delivery about an unwritten
	// report must be impossible.
	if err := o.reports.Save(r); err != nil {
		return nil, err
	}
	if err := o.reports.WriteIndex(o.now()); err != nil {
		o.logger.Error().Err(err).Msg("Failed to regenerate report index")
	}

	if o.notifier != nil {
		if err := o.notifier.Notify(r); err != nil {
			// The report is already durable; delivery failure is logged,
			// not fatal.
			o.logger.Error().Err(err).Msg("Notification failed")
		}
	}

	return r, nil
}

// ensureSeries returns the cached series for a symbol, fetching from the
// source when the evaluation date is missing, history is too thin, or a
// refresh is forced. A corrupted cache file is quarantined and refetched
// within the same run.
func (o *Orchestrator) ensureSeries(ctx context.Context, symbol string, evalDay time.Time, date string, force bool) ([]models.TradingDay, error) {
	series, err := o.store.Get(symbol)
	if err != nil {
		var corrupt *cache.CorruptionError
		if !errors.As(err, &corrupt) {
			return nil, err
		}
		if _, qErr := o.store.Quarantine(symbol); qErr != nil {
			return nil, qErr
		}
		series = nil
		force = true
	}

	_, hasDay := findDay(series, date)
	priorDays := countBefore(series, date)

	if hasDay && priorDays >= o.cfg.WindowSize && !force {
		return series, nil
	}

	// Fetch the whole window plus the evaluation date; the merge dedups
	// against what is already cached.
	windowDates := market.TradingDates(market.PrevTradingDay(evalDay), o.cfg.WindowSize)
	fetched, err := o.fetcher.History(ctx, symbol, windowDates[0], date)
	if err != nil {
		return nil, err
	}

	return o.mergeWithRecovery(symbol, fetched, force)
}

// mergeWithRecovery merges a batch, quarantining and retrying once when
// the cached file turns out to be corrupted.
func (o *Orchestrator) mergeWithRecovery(symbol string, batch []models.TradingDay, force bool) ([]models.TradingDay, error) {
	merged, err := o.store.Merge(symbol, batch, force)
	if err == nil {
		return merged, nil
	}

	var corrupt *cache.CorruptionError
	if !errors.As(err, &corrupt) {
		return nil, err
	}
	if _, qErr := o.store.Quarantine(symbol); qErr != nil {
		return nil, qErr
	}
	return o.store.Merge(symbol, batch, force)
}

func findDay(series []models.TradingDay, date string) (models.TradingDay, bool) {
	for _, d := range series {
		if d.Date == date {
			return d, true
		}
	}
	return models.TradingDay{}, false
}

func countBefore(series []models.TradingDay, date string) int {
	n := 0
	for _, d := range series {
		if d.Date < date {
			n++
		}
	}
	return n
}
