// Package leaderboard serves the rating leaderboard, mirroring profiles
// into a Redis sorted set when a cache is configured and falling back to
// SQLite otherwise.
package leaderboard

import (
	"context"
	"strconv"

	"github.com/Krutik08064/CricSaga-Bot/internal/constants"
	"github.com/Krutik08064/CricSaga-Bot/internal/domain"
	"github.com/Krutik08064/CricSaga-Bot/internal/repository"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const ratingKey = "ranked:leaderboard:rating"

type Service struct {
	rdb      *redis.Client // nil disables the cache
	profiles *repository.ProfileRepository
	logger   zerolog.Logger
}

func NewService(rdb *redis.Client, profiles *repository.ProfileRepository, logger zerolog.Logger) *Service {
	return &Service{rdb: rdb, profiles: profiles, logger: logger}
}

// Top returns up to limit profiles ordered by rating descending.
func (s *Service) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = constants.DefaultLeaderboardLimit
	}
	if limit > constants.MaxLeaderboardLimit {
		limit = constants.MaxLeaderboardLimit
	}

	if s.rdb != nil {
		entries, err := s.fromCache(ctx, limit)
		if err != nil {
			s.logger.Warn().Err(err).Msg("leaderboard cache read failed, falling back to database")
		} else if len(entries) > 0 {
			return entries, nil
		}
	}

	return s.fromDatabase(ctx, limit)
}

// Record mirrors one profile's rating into the cache. Best-effort: cache
// failures are logged and swallowed, never surfaced to the ranked flow.
func (s *Service) Record(ctx context.Context, profile *domain.PlayerCareerProfile) {
	if s.rdb == nil || profile == nil {
		return
	}
	err := s.rdb.ZAdd(ctx, ratingKey, &redis.Z{
		Score:  float64(profile.Rating),
		Member: profile.PlayerID,
	}).Err()
	if err != nil {
		s.logger.Warn().Err(err).Int64("player_id", profile.PlayerID).
			Msg("failed to update leaderboard cache")
	}
}

// Refresh rebuilds the sorted set from the profiles table.
func (s *Service) Refresh(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	profiles, err := s.profiles.TopByRating(ctx, constants.MaxLeaderboardLimit)
	if err != nil {
		return err
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, ratingKey)
	for _, p := range profiles {
		pipe.ZAdd(ctx, ratingKey, &redis.Z{Score: float64(p.Rating), Member: p.PlayerID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	s.logger.Info().Int("count", len(profiles)).Msg("leaderboard cache refreshed")
	return nil
}

func (s *Service) fromCache(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	members, err := s.rdb.ZRevRangeWithScores(ctx, ratingKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m.Member.(string), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	profiles, err := s.profiles.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		p, ok := profiles[id]
		if !ok {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			Rank:     len(entries) + 1,
			PlayerID: p.PlayerID,
			Rating:   p.Rating,
			RankTier: p.RankTier,
			Wins:     p.Wins,
			Losses:   p.Losses,
		})
	}
	return entries, nil
}

func (s *Service) fromDatabase(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	profiles, err := s.profiles.TopByRating(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.LeaderboardEntry, 0, len(profiles))
	for i, p := range profiles {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: p.PlayerID,
			Rating:   p.Rating,
			RankTier: p.RankTier,
			Wins:     p.Wins,
			Losses:   p.Losses,
		})
	}
	return entries, nil
}
