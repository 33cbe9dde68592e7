package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

type Config struct {
	DiscordToken     string
	DatabaseURL      string
	TargetChannelIDs []int64
	SelfUserID       int64
	GatewayURL       string
	FallbackPath     string
	ConnectTimeout   time.Duration
	WriteConcurrency int
	ServerAddr       string
	MetricsAddr      string
	RedisURL         string
	RateLimit        int
	AuditLogPath     string
	LogLevel         slog.Level
	MinIOEndpoint    string
	MinIOAccessKey   string
	MinIOSecretKey   string
	MinIOBucket      string
	MinIOSecure      bool

	// errs collects parse failures so Validate can report them together with
	// missing variables.
	errs []string
}

// Load reads configuration from the environment, loading a .env file first
// when one is present. It never fails; call Validate for the variables a
// binary cannot run without.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:   os.Getenv("DISCORD_TOKEN"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		GatewayURL:     envOrDefault("GATEWAY_URL", defaultGatewayURL),
		FallbackPath:   envOrDefault("FALLBACK_PATH", "data/messages.jsonl"),
		ServerAddr:     envOrDefault("SERVER_ADDR", ":8080"),
		MetricsAddr:    envOrDefault("METRICS_ADDR", ":9090"),
		RedisURL:       os.Getenv("REDIS_URL"),
		AuditLogPath:   envOrDefault("AUDIT_LOG_PATH", "stdout"),
		LogLevel:       parseLogLevel(os.Getenv("LOG_LEVEL")),
		MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:    envOrDefault("MINIO_BUCKET", "memetracker-archive"),
	}

	ids, err := ParseChannelIDs(os.Getenv("TARGET_CHANNEL_IDS"))
	if err != nil {
		cfg.errs = append(cfg.errs, err.Error())
	}
	cfg.TargetChannelIDs = ids

	if v := os.Getenv("SELF_USER_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			cfg.errs = append(cfg.errs, fmt.Sprintf("SELF_USER_ID: invalid id %q", v))
		}
		cfg.SelfUserID = id
	}

	if v := os.Getenv("MINIO_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			cfg.errs = append(cfg.errs, fmt.Sprintf("MINIO_SECURE: invalid bool %q", v))
		}
		cfg.MinIOSecure = secure
	}

	cfg.ConnectTimeout = cfg.duration("DB_CONNECT_TIMEOUT", 10*time.Second)
	cfg.WriteConcurrency = cfg.positiveInt("WRITE_CONCURRENCY", 8)
	cfg.RateLimit = cfg.positiveInt("RATE_LIMIT_PER_MINUTE", 120)

	return cfg
}

// Validate reports parse failures and any of the named variables that are
// unset.
func (c *Config) Validate(required ...string) error {
	problems := append([]string(nil), c.errs...)

	var missing []string
	for _, key := range required {
		if c.lookup(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		problems = append(problems, fmt.Sprintf("required environment variables not set: %s", strings.Join(missing, ", ")))
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// HasDatabase reports whether a durable store is configured.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) lookup(key string) string {
	switch key {
	case "DISCORD_TOKEN":
		return c.DiscordToken
	case "DATABASE_URL":
		return c.DatabaseURL
	case "REDIS_URL":
		return c.RedisURL
	case "MINIO_ENDPOINT":
		return c.MinIOEndpoint
	case "MINIO_ACCESS_KEY":
		return c.MinIOAccessKey
	case "MINIO_SECRET_KEY":
		return c.MinIOSecretKey
	}
	return os.Getenv(key)
}

// ParseChannelIDs parses a comma-separated list of channel IDs. Blank
// entries are ignored.
func ParseChannelIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TARGET_CHANNEL_IDS: invalid channel id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Config) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		c.errs = append(c.errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}

func (c *Config) positiveInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		c.errs = append(c.errs, fmt.Sprintf("%s: invalid value %q", key, v))
		return fallback
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
