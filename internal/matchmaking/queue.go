// Package matchmaking pairs waiting players by rating proximity, widening
// the search window the longer a player waits.
package matchmaking

import (
	"context"
	"math"
	"time"

	"github.com/Krutik08064/CricSaga-Bot/internal/constants"
	"github.com/Krutik08064/CricSaga-Bot/internal/domain"
	"github.com/Krutik08064/CricSaga-Bot/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PairedHandler receives each formed pair. It runs on the pairing loop's
// goroutine and should hand off quickly.
type PairedHandler func(domain.PairedMatch)

// Queue is one matchmaking queue over an injected entry store. Independent
// queues (per game mode) each get their own repository.
type Queue struct {
	repo   *repository.QueueRepository
	logger zerolog.Logger

	shutdown chan struct{}
	done     chan struct{}
}

func NewQueue(repo *repository.QueueRepository, logger zerolog.Logger) *Queue {
	return &Queue{
		repo:     repo,
		logger:   logger,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Join upserts the player's entry. Re-joining refreshes the rating snapshot
// and join time; exactly one live entry exists per player.
func (q *Queue) Join(ctx context.Context, playerID int64, rating int, rankTier string) (domain.QueueEntry, error) {
	entry := domain.QueueEntry{
		PlayerID: playerID,
		Rating:   rating,
		RankTier: rankTier,
		JoinedAt: time.Now().UTC(),
	}
	if err := q.repo.Upsert(ctx, entry); err != nil {
		return domain.QueueEntry{}, err
	}
	q.logger.Info().Int64("player_id", playerID).Int("rating", rating).Msg("player joined queue")
	return entry, nil
}

// Leave removes the player's entry. Absence is a no-op: the player may have
// just been paired, and losing that race is not an error.
func (q *Queue) Leave(ctx context.Context, playerID int64) error {
	removed, err := q.repo.Remove(ctx, playerID)
	if err != nil {
		return err
	}
	if removed {
		q.logger.Info().Int64("player_id", playerID).Msg("player left queue")
	}
	return nil
}

func (q *Queue) Size(ctx context.Context) (int, error) {
	return q.repo.Size(ctx)
}

func (q *Queue) Entry(ctx context.Context, playerID int64) (*domain.QueueEntry, error) {
	return q.repo.Get(ctx, playerID)
}

// TryPair attempts to match the longest-waiting player against the
// closest-rating candidate inside that player's current tolerance window.
// At most one pair is formed per call; both entries are claimed atomically,
// and losing the claim race just means a later tick retries.
func (q *Queue) TryPair(ctx context.Context) (*domain.PairedMatch, error) {
	entries, err := q.repo.ListWaiting(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) < 2 {
		return nil, nil
	}

	now := time.Now().UTC()
	for i, waiter := range entries {
		window := toleranceWindow(now.Sub(waiter.JoinedAt))

		best := -1
		bestGap := math.MaxInt
		for j, candidate := range entries {
			if i == j {
				continue
			}
			gap := waiter.Rating - candidate.Rating
			if gap < 0 {
				gap = -gap
			}
			if gap <= window && gap < bestGap {
				best = j
				bestGap = gap
			}
		}
		if best < 0 {
			continue
		}

		candidate := entries[best]
		claimed, err := q.repo.ClaimPair(ctx, waiter.PlayerID, candidate.PlayerID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Entry already removed by a concurrent leave or pairing;
			// silently retried on the next scheduling tick.
			continue
		}

		pair := &domain.PairedMatch{
			MatchID:  uuid.New().String(),
			Player1:  waiter,
			Player2:  candidate,
			PairedAt: now,
		}
		q.logger.Info().
			Str("match_id", pair.MatchID).
			Int64("player1", waiter.PlayerID).
			Int64("player2", candidate.PlayerID).
			Int("rating_gap", bestGap).
			Msg("queue pair formed")
		return pair, nil
	}

	return nil, nil
}

// toleranceWindow widens linearly with wait time and becomes unbounded past
// the ceiling.
func toleranceWindow(waited time.Duration) int {
	if waited >= constants.UnlimitedWindowAfter {
		return math.MaxInt
	}
	steps := int(waited / constants.WindowWidenInterval)
	return constants.BaseRatingWindow + steps*constants.WindowWidenStep
}

// Start runs the pairing loop until Stop. Each tick drains as many pairs as
// the current queue allows, handing each to onPaired.
func (q *Queue) Start(onPaired PairedHandler) {
	go func() {
		defer close(q.done)
		ticker := time.NewTicker(constants.QueueTickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				q.tick(onPaired)
			case <-q.shutdown:
				return
			}
		}
	}()
	q.logger.Info().Dur("interval", constants.QueueTickInterval).Msg("matchmaking loop started")
}

func (q *Queue) tick(onPaired PairedHandler) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	for {
		pair, err := q.TryPair(ctx)
		if err != nil {
			q.logger.Error().Err(err).Msg("pairing tick failed")
			return
		}
		if pair == nil {
			return
		}
		onPaired(*pair)
	}
}

func (q *Queue) Stop() {
	close(q.shutdown)
	<-q.done
	q.logger.Info().Msg("matchmaking loop stopped")
}
