package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath       string
	LogLevel     string
	RedisAddr    string // optional, empty disables the leaderboard cache
	RedisPass    string
	AuditSinkURL string // optional, empty disables event delivery
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:       getEnv("DB_PATH", "ranked.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		RedisPass:    getEnv("REDIS_PASSWORD", ""),
		AuditSinkURL: getEnv("AUDIT_SINK_URL", ""),
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("log_level", cfg.LogLevel).
		Bool("redis_enabled", cfg.RedisAddr != "").
		Bool("audit_sink_enabled", cfg.AuditSinkURL != "").
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
