// Package service exposes the ranked engine's inbound contract to the
// game/UI layer: queueing, challenges, match completion, profiles, and the
// leaderboard.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/Krutik08064/CricSaga-Bot/internal/audit"
	"github.com/Krutik08064/CricSaga-Bot/internal/challenge"
	"github.com/Krutik08064/CricSaga-Bot/internal/constants"
	"github.com/Krutik08064/CricSaga-Bot/internal/domain"
	"github.com/Krutik08064/CricSaga-Bot/internal/leaderboard"
	"github.com/Krutik08064/CricSaga-Bot/internal/matchmaking"
	"github.com/Krutik08064/CricSaga-Bot/internal/repository"
	"github.com/Krutik08064/CricSaga-Bot/internal/stats"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

type RankedService struct {
	profiles   *repository.ProfileRepository
	queue      *matchmaking.Queue
	challenges *challenge.Manager
	aggregator *stats.Aggregator
	board      *leaderboard.Service
	emitter    audit.Emitter
	logger     zerolog.Logger
}

func NewRankedService(
	profiles *repository.ProfileRepository,
	queue *matchmaking.Queue,
	challenges *challenge.Manager,
	aggregator *stats.Aggregator,
	board *leaderboard.Service,
	emitter audit.Emitter,
	logger zerolog.Logger,
) *RankedService {
	return &RankedService{
		profiles:   profiles,
		queue:      queue,
		challenges: challenges,
		aggregator: aggregator,
		board:      board,
		emitter:    emitter,
		logger:     logger,
	}
}

// JoinQueue puts the player into the ranked queue, creating their career
// profile on first activity. Re-joining refreshes the entry.
func (s *RankedService) JoinQueue(ctx context.Context, playerID int64) (*domain.QueueEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	profile, err := s.profiles.GetOrCreate(ctx, playerID)
	if err != nil {
		return nil, err
	}

	entry, err := s.queue.Join(ctx, playerID, profile.Rating, profile.RankTier)
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(domain.Event{
		Type:       domain.EventQueueJoined,
		OccurredAt: entry.JoinedAt,
		Payload:    domain.QueueJoinedEvent{PlayerID: playerID, Rating: profile.Rating},
	})
	return &entry, nil
}

// LeaveQueue removes the player from the queue; always ok, even when the
// player was already paired or never queued.
func (s *RankedService) LeaveQueue(ctx context.Context, playerID int64) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()
	return s.queue.Leave(ctx, playerID)
}

func (s *RankedService) CreateChallenge(ctx context.Context, challengerID, targetID int64) (*domain.Challenge, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()
	return s.challenges.Create(ctx, challengerID, targetID)
}

// RespondChallenge resolves a pending challenge. Accepting forms a match and
// returns the pairing handed to the simulation; declining returns nil.
func (s *RankedService) RespondChallenge(ctx context.Context, challengeID string, accept bool) (*domain.PairedMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	ch, err := s.challenges.Respond(ctx, challengeID, accept)
	if err != nil {
		return nil, err
	}
	if !accept {
		return nil, nil
	}

	now := time.Now().UTC()
	pair := &domain.PairedMatch{
		MatchID: uuid.New().String(),
		Player1: domain.QueueEntry{
			PlayerID: ch.ChallengerID,
			Rating:   ch.ChallengerRating,
			RankTier: ch.ChallengerTier,
			JoinedAt: ch.CreatedAt,
		},
		Player2: domain.QueueEntry{
			PlayerID: ch.TargetID,
			Rating:   ch.TargetRating,
			RankTier: ch.TargetTier,
			JoinedAt: ch.CreatedAt,
		},
		PairedAt: now,
	}
	s.emitMatchStarted(*pair)
	return pair, nil
}

// HandleQueuePair is the matchmaking loop's callback for formed pairs.
func (s *RankedService) HandleQueuePair(pair domain.PairedMatch) {
	s.emitMatchStarted(pair)
}

func (s *RankedService) emitMatchStarted(pair domain.PairedMatch) {
	s.emitter.Emit(domain.Event{
		Type:       domain.EventMatchStarted,
		OccurredAt: pair.PairedAt,
		Payload: domain.MatchStartedEvent{
			MatchID:   pair.MatchID,
			Player1ID: pair.Player1.PlayerID,
			Player2ID: pair.Player2.PlayerID,
			P1Rating:  pair.Player1.Rating,
			P2Rating:  pair.Player2.Rating,
		},
	})
}

// CompleteMatch commits a finished match. StatsCommitFailed is the one
// retryable failure: the commit is guarded against current profile state,
// so replaying the same result is safe. Everything else surfaces as-is.
func (s *RankedService) CompleteMatch(ctx context.Context, result domain.MatchResult) (*domain.MatchOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	var outcome *domain.MatchOutcome
	backoff := retry.WithMaxRetries(constants.CommitRetryAttempts, retry.NewConstant(constants.CommitRetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		outcome, err = s.aggregator.CompleteMatch(ctx, result)
		if errors.Is(err, domain.ErrStatsCommitFailed) {
			s.logger.Warn().Str("match_id", result.MatchID).Msg("retrying stats commit")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if !outcome.Duplicate {
		s.board.Record(ctx, outcome.P1After)
		s.board.Record(ctx, outcome.P2After)

		s.emitter.Emit(domain.Event{
			Type:       domain.EventMatchCompleted,
			OccurredAt: outcome.Record.PlayedAt,
			Payload: domain.MatchCompletedEvent{
				MatchID:   outcome.Record.MatchID,
				WinnerID:  outcome.Record.WinnerID,
				P1Delta:   outcome.Record.P1RatingDelta,
				P2Delta:   outcome.Record.P2RatingDelta,
				P1Score:   outcome.Record.P1Score,
				P2Score:   outcome.Record.P2Score,
				P1Wickets: outcome.Record.P1Wickets,
				P2Wickets: outcome.Record.P2Wickets,
			},
		})
	}
	return outcome, nil
}

func (s *RankedService) GetProfile(ctx context.Context, playerID int64) (*domain.PlayerCareerProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()
	return s.profiles.Get(ctx, playerID)
}

func (s *RankedService) GetLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()
	return s.board.Top(ctx, limit)
}

// QueueStatus reports the player's live entry (nil when not queued) and the
// total queue size, for the UI layer's status rendering.
func (s *RankedService) QueueStatus(ctx context.Context, playerID int64) (*domain.QueueEntry, int, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	entry, err := s.queue.Entry(ctx, playerID)
	if err != nil {
		return nil, 0, err
	}
	size, err := s.queue.Size(ctx)
	if err != nil {
		return nil, 0, err
	}
	return entry, size, nil
}

// RecentMatches exposes a player's match history.
func (s *RankedService) RecentMatches(ctx context.Context, playerID int64, limit int) ([]domain.MatchRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()
	return s.aggregator.RecentMatches(ctx, playerID, limit)
}
