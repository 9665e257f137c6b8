package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken      string
	DatabaseURL        string
	AdminTelegramID    int64 // 0 disables the admin commands
	LogLevel           string
	Environment        string
	Timezone           string
	Location           *time.Location
	SendHourStart      int
	SendHourEnd        int
	BatchSize          int
	BatchPause         time.Duration
	SchedulerPeriod    time.Duration
	TelegramRatePerSec float64
	SuppressBlocked    bool // record blocked recipients instead of retrying them
	DefaultLocale      string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}
	return cfg, nil
}

// FromEnv reads configuration from the process environment only.
// TELEGRAM_TOKEN is optional here; commands that talk to Telegram go through Load.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.Timezone = os.Getenv("TIMEZONE")
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Almaty"
	}
	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if cfg.SendHourStart, err = intEnv("SEND_HOUR_START", 9); err != nil {
		return nil, err
	}
	if cfg.SendHourEnd, err = intEnv("SEND_HOUR_END", 21); err != nil {
		return nil, err
	}
	if cfg.SendHourStart < 0 || cfg.SendHourStart > 24 || cfg.SendHourEnd < 0 || cfg.SendHourEnd > 24 {
		return nil, fmt.Errorf("send hours must be within [0, 24], got %d-%d", cfg.SendHourStart, cfg.SendHourEnd)
	}
	if cfg.SendHourStart >= cfg.SendHourEnd {
		return nil, fmt.Errorf("SEND_HOUR_START (%d) must be before SEND_HOUR_END (%d)", cfg.SendHourStart, cfg.SendHourEnd)
	}

	if cfg.BatchSize, err = intEnv("BATCH_SIZE", 50); err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}

	if cfg.BatchPause, err = durationEnv("BATCH_PAUSE", 300*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.SchedulerPeriod, err = durationEnv("SCHEDULER_PERIOD", time.Minute); err != nil {
		return nil, err
	}
	if cfg.SchedulerPeriod < time.Second {
		return nil, fmt.Errorf("SCHEDULER_PERIOD must be at least 1s, got %s", cfg.SchedulerPeriod)
	}

	cfg.TelegramRatePerSec = 25
	if v := os.Getenv("TELEGRAM_RATE_PER_SEC"); v != "" {
		cfg.TelegramRatePerSec, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_RATE_PER_SEC: %w", err)
		}
	}

	if v := os.Getenv("SUPPRESS_BLOCKED_RECIPIENTS"); v != "" {
		cfg.SuppressBlocked, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SUPPRESS_BLOCKED_RECIPIENTS: %w", err)
		}
	}

	cfg.DefaultLocale = strings.ToLower(os.Getenv("DEFAULT_LOCALE"))
	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = "ru"
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
