// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP      HTTPConfig
	Storage   StorageConfig
	Program   ProgramConfig
	Logging   LoggingConfig
	Telegram  TelegramConfig
	Scheduler SchedulerConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// StorageConfig locates the snapshot database.
type StorageConfig struct {
	DBPath string
	// SnapshotRetention keeps this many versions per table on startup;
	// zero keeps everything.
	SnapshotRetention int
}

// ProgramConfig selects the tier program. An empty File uses the
// embedded default.
type ProgramConfig struct {
	File string
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

// TelegramConfig configures the notification channel. Without a token
// notifications are written to the log.
type TelegramConfig struct {
	BotToken      string
	ChatID        string
	BaseURL       string
	NotifyTimeout time.Duration
}

// SchedulerConfig controls the promotion announcer.
type SchedulerConfig struct {
	AnnounceEnabled  bool
	AnnounceInterval time.Duration
}

const (
	defaultPort             = 8080
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 30 * time.Second
	defaultDBPath           = "cashback.db"
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "text"
	defaultTelegramURL      = "https://api.telegram.org"
	defaultNotifyTimeout    = 5 * time.Second
	defaultAnnounceInterval = 1 * time.Hour
	defaultAllowedOrigins   = "http://localhost:5173,http://localhost:8080"
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			AllowedOrigins: splitCSV(valueOrDefault("ALLOWED_ORIGINS", defaultAllowedOrigins)),
		},
		Storage: StorageConfig{
			DBPath:            valueOrDefault("DB_PATH", defaultDBPath),
			SnapshotRetention: parseIntWithDefault("SNAPSHOT_RETENTION", 0),
		},
		Program: ProgramConfig{
			File: os.Getenv("PROGRAM_FILE"),
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
		Telegram: TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
			BaseURL:  valueOrDefault("TELEGRAM_API_URL", defaultTelegramURL),
		},
		Scheduler: SchedulerConfig{
			AnnounceEnabled: parseBoolWithDefault("ANNOUNCE_ENABLED", true),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", defaultReadTimeout, &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", defaultWriteTimeout, &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", defaultIdleTimeout, &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout, &cfg.HTTP.ShutdownTimeout},
		{"NOTIFY_TIMEOUT", defaultNotifyTimeout, &cfg.Telegram.NotifyTimeout},
		{"ANNOUNCE_INTERVAL", defaultAnnounceInterval, &cfg.Scheduler.AnnounceInterval},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	if cfg.Storage.SnapshotRetention < 0 {
		return Config{}, fmt.Errorf("SNAPSHOT_RETENTION must not be negative, got %d", cfg.Storage.SnapshotRetention)
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %s", key, d)
	}
	return d, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
