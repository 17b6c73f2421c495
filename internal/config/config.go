package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. It is constructed once at
// the entrypoint and passed down; no component below the orchestrator
// reads the environment.
type Config struct {
	// Symbols to monitor (MOEX security IDs).
	Symbols []string `yaml:"symbols"`

	DataDir    string `yaml:"data_dir"`
	ReportsDir string `yaml:"reports_dir"`

	WindowSize        int     `yaml:"window_size"`
	MinPeriods        int     `yaml:"min_periods"`
	ThresholdModerate float64 `yaml:"threshold_moderate"`
	ThresholdHigh     float64 `yaml:"threshold_high"`

	// Optional liquidity filters on the volume metric, off when zero.
	MinAvgValue     float64 `yaml:"min_avg_value"`
	MinDeviationPct float64 `yaml:"min_deviation_pct"`

	RequestTimeout  time.Duration `yaml:"request_timeout"`
	RequestsPerSec  int           `yaml:"requests_per_sec"`
	MaxRetryElapsed time.Duration `yaml:"max_retry_elapsed"`

	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   int64  `yaml:"telegram_chat_id"`
	NotifyAlways     bool   `yaml:"notify_always"`

	ServerPort int    `yaml:"server_port"`
	Schedule   string `yaml:"schedule"`

	LogLevel string `yaml:"log_level"`
}

// Load builds the configuration: defaults, then the optional YAML file at
// path (empty path means skip), then environment variable overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := defaults()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Symbols:           []string{"SBER", "GAZP", "LKOH"},
		DataDir:           "data",
		ReportsDir:        "reports",
		WindowSize:        30,
		MinPeriods:        20,
		ThresholdModerate: 2.0,
		ThresholdHigh:     3.0,
		RequestTimeout:    30 * time.Second,
		RequestsPerSec:    5,
		MaxRetryElapsed:   30 * time.Second,
		ServerPort:        8080,
		Schedule:          "0 0 10 * * MON-FRI",
		LogLevel:          "info",
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Symbols = splitSymbols(v)
	}
	cfg.DataDir = getEnvWithDefault("DATA_DIR", cfg.DataDir)
	cfg.ReportsDir = getEnvWithDefault("REPORTS_DIR", cfg.ReportsDir)

	cfg.WindowSize = getEnvIntWithDefault("WINDOW_SIZE", cfg.WindowSize)
	cfg.MinPeriods = getEnvIntWithDefault("MIN_PERIODS", cfg.MinPeriods)
	cfg.ThresholdModerate = getEnvFloatWithDefault("THRESHOLD_MODERATE", cfg.ThresholdModerate)
	cfg.ThresholdHigh = getEnvFloatWithDefault("THRESHOLD_HIGH", cfg.ThresholdHigh)
	cfg.MinAvgValue = getEnvFloatWithDefault("MIN_AVG_VALUE", cfg.MinAvgValue)
	cfg.MinDeviationPct = getEnvFloatWithDefault("MIN_DEVIATION_PCT", cfg.MinDeviationPct)

	if v := getEnvIntWithDefault("REQUEST_TIMEOUT", 0); v > 0 {
		cfg.RequestTimeout = time.Duration(v) * time.Second
	}
	cfg.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SEC", cfg.RequestsPerSec)
	if v := getEnvIntWithDefault("MAX_RETRY_ELAPSED", 0); v > 0 {
		cfg.MaxRetryElapsed = time.Duration(v) * time.Second
	}

	cfg.TelegramBotToken = getEnvWithDefault("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = id
		}
	}
	cfg.NotifyAlways = getEnvBoolWithDefault("NOTIFY_ALWAYS", cfg.NotifyAlways)

	cfg.ServerPort = getEnvIntWithDefault("SERVER_PORT", cfg.ServerPort)
	cfg.Schedule = getEnvWithDefault("SCHEDULE", cfg.Schedule)
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", cfg.LogLevel)
}

func (c *Config) validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: at least one symbol is required")
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("config: window_size must be >= 1, got %d", c.WindowSize)
	}
	if c.MinPeriods < 1 || c.MinPeriods > c.WindowSize {
		return fmt.Errorf("config: min_periods must be in [1, window_size], got %d", c.MinPeriods)
	}
	if c.ThresholdModerate <= 0 || c.ThresholdHigh <= c.ThresholdModerate {
		return fmt.Errorf("config: thresholds must satisfy 0 < moderate < high, got %.2f / %.2f",
			c.ThresholdModerate, c.ThresholdHigh)
	}
	return nil
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
