package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/moex-anomaly/internal/cache"
	"github.com/Alias1177/moex-anomaly/internal/config"
	"github.com/Alias1177/moex-anomaly/internal/moex"
	"github.com/Alias1177/moex-anomaly/internal/notify"
	"github.com/Alias1177/moex-anomaly/internal/orchestrator"
	"github.com/Alias1177/moex-anomaly/internal/report"
	"github.com/Alias1177/moex-anomaly/internal/scheduler"
	"github.com/Alias1177/moex-anomaly/internal/server"
)

// analysisJob runs the daily analysis for the default evaluation date.
type analysisJob struct {
	orch *orchestrator.Orchestrator
}

func (j *analysisJob) Name() string { return "daily-analysis" }

func (j *analysisJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	_, err := j.orch.Analyze(ctx, "", false)
	return err
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
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
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
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

	sched := scheduler.New()
	if err := sched.AddJob(cfg.Schedule, &analysisJob{orch: orch}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Schedule).Msg("Failed to register analysis job")
	}
	sched.Start()

	srv := server.New(server.Config{
		Port:       cfg.ServerPort,
		ReportsDir: cfg.ReportsDir,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
