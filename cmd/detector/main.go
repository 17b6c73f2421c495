package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/moex-anomaly/internal/cache"
	"github.com/Alias1177/moex-anomaly/internal/config"
	"github.com/Alias1177/moex-anomaly/internal/moex"
	"github.com/Alias1177/moex-anomaly/internal/notify"
	"github.com/Alias1177/moex-anomaly/internal/orchestrator"
	"github.com/Alias1177/moex-anomaly/internal/report"
	"github.com/Alias1177/moex-anomaly/models"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file (optional)")
		initMode   = flag.Bool("init", false, "backfill mode: load historical data and exit")
		days       = flag.Int("days", 60, "number of trading days to backfill with --init")
		date       = flag.String("date", "", "evaluation date YYYY-MM-DD (default: previous trading day)")
		force      = flag.Bool("force", false, "refetch from the API even if the date is cached")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

	if *date != "" {
		if _, err := time.Parse(models.DateFormat, *date); err != nil {
			log.Fatal().Str("date", *date).Msg("Invalid date, expected YYYY-MM-DD")
		}
	}

	store, err := cache.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open series cache")
	}

	reports, err := report.NewBuilder(cfg.ReportsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open reports directory")
	}

	client := moex.NewClient(moex.ClientOptions{
		RequestTimeout:  cfg.RequestTimeout,
		RequestsPerSec:  cfg.RequestsPerSec,
		MaxRetryElapsed: cfg.MaxRetryElapsed,
	})

	var notifier notify.Notifier
	if !*initMode && cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.NotifyAlways)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Telegram notifier")
		}
		notifier = tg
	}

	orch := orchestrator.New(orchestrator.Options{
		Config:   cfg,
		Store:    store,
		Fetcher:  client,
		Reports:  reports,
		Notifier: notifier,
	})

	ctx := context.Background()

	if *initMode {
		if err := orch.Backfill(ctx, *days); err != nil {
			log.Fatal().Err(err).Msg("Backfill failed")
		}
		log.Info().Int("days", *days).Msg("Backfill complete")
		return
	}

	r, err := orch.Analyze(ctx, *date, *force)
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}

	log.Info().
		Str("date", r.Date).
		Str("status", r.Status).
		Int("anomalies", len(r.Anomalies)).
		Msg("Analysis complete")
}
