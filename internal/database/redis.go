package database

import (
	"context"

	"github.com/Krutik08064/CricSaga-Bot/internal/config"
	"github.com/Krutik08064/CricSaga-Bot/internal/constants"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// NewRedis connects the optional leaderboard cache. Returns a nil client
// when Redis is not configured or unreachable; the leaderboard then serves
// straight from SQLite. Redis is never load-bearing for ranked correctness.
func NewRedis(cfg *config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		logger.Info().Msg("redis not configured, leaderboard cache disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
	})

	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).
			Msg("redis unreachable, leaderboard cache disabled")
		client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("redis leaderboard cache connected")
	return client
}
