// Package challenge models direct match proposals between two named
// players: a pending -> accepted | declined | expired state machine with
// anti-spam cooldowns on every terminal transition.
package challenge

import (
	"context"
	"fmt"
	"time"

	"github.com/Krutik08064/CricSaga-Bot/internal/constants"
	"github.com/Krutik08064/CricSaga-Bot/internal/domain"
	"github.com/Krutik08064/CricSaga-Bot/internal/repository"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type Manager struct {
	challenges *repository.ChallengeRepository
	profiles   *repository.ProfileRepository
	logger     zerolog.Logger

	shutdown chan struct{}
	done     chan struct{}
}

func NewManager(challenges *repository.ChallengeRepository, profiles *repository.ProfileRepository, logger zerolog.Logger) *Manager {
	return &Manager{
		challenges: challenges,
		profiles:   profiles,
		logger:     logger,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Create opens a pending challenge from challenger to target, snapshotting
// both players' current rating and tier. Fails with ErrOnCooldown while the
// ordered pair's cooldown holds, and ErrAlreadyPending if a pending
// challenge for the pair exists.
func (m *Manager) Create(ctx context.Context, challengerID, targetID int64) (*domain.Challenge, error) {
	if challengerID == targetID {
		return nil, fmt.Errorf("player %d cannot challenge themselves", challengerID)
	}

	now := time.Now().UTC()
	onCooldown, err := m.challenges.OnCooldown(ctx, challengerID, targetID, now)
	if err != nil {
		return nil, err
	}
	if onCooldown {
		return nil, domain.ErrOnCooldown
	}

	challenger, err := m.profiles.GetOrCreate(ctx, challengerID)
	if err != nil {
		return nil, err
	}
	target, err := m.profiles.GetOrCreate(ctx, targetID)
	if err != nil {
		return nil, err
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge id: %w", err)
	}

	ch := domain.Challenge{
		ID:               id,
		ChallengerID:     challengerID,
		TargetID:         targetID,
		ChallengerRating: challenger.Rating,
		TargetRating:     target.Rating,
		ChallengerTier:   challenger.RankTier,
		TargetTier:       target.RankTier,
		Status:           domain.ChallengePending,
		CreatedAt:        now,
		ExpiresAt:        now.Add(constants.ChallengeTTL),
	}
	if err := m.challenges.Insert(ctx, ch); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("challenge_id", ch.ID).
		Int64("challenger_id", challengerID).
		Int64("target_id", targetID).
		Time("expires_at", ch.ExpiresAt).
		Msg("challenge created")
	return &ch, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*domain.Challenge, error) {
	return m.challenges.GetByID(ctx, id)
}

// Respond accepts or declines a pending challenge. Valid only from pending;
// a challenge already resolved (or expired by the sweep) fails with
// ErrInvalidState. The pair cooldown is written either way.
func (m *Manager) Respond(ctx context.Context, id string, accept bool) (*domain.Challenge, error) {
	to := domain.ChallengeDeclined
	if accept {
		to = domain.ChallengeAccepted
	}

	cooldownUntil := time.Now().UTC().Add(constants.ChallengeCooldown)
	ch, ok, err := m.challenges.ResolvePending(ctx, id, to, cooldownUntil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("challenge %s is %s: %w", id, ch.Status, domain.ErrInvalidState)
	}

	m.logger.Info().
		Str("challenge_id", id).
		Str("status", string(to)).
		Msg("challenge resolved")
	return ch, nil
}

// Sweep expires overdue pending challenges, writing the same cooldown side
// effect as a decline. Safe to run concurrently with Respond: each
// transition is conditional on the challenge still being pending, so a
// racing accept simply wins and the sweep skips that row.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	expired, err := m.challenges.ListExpiredPending(ctx, now)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, ch := range expired {
		_, ok, err := m.challenges.ResolvePending(ctx, ch.ID, domain.ChallengeExpired, now.Add(constants.ChallengeCooldown))
		if err != nil {
			// Back off; the next tick picks up whatever is left.
			m.logger.Warn().Err(err).Str("challenge_id", ch.ID).Msg("expiry sweep backing off")
			return swept, err
		}
		if ok {
			swept++
		}
	}
	if swept > 0 {
		m.logger.Info().Int("count", swept).Msg("expired pending challenges")
	}
	return swept, nil
}

// Start runs the expiry sweep loop until Stop. This is the engine's only
// background task besides queue pairing.
func (m *Manager) Start() {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(constants.ChallengeSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
				if _, err := m.Sweep(ctx); err != nil {
					m.logger.Error().Err(err).Msg("challenge sweep failed")
				}
				cancel()
			case <-m.shutdown:
				return
			}
		}
	}()
	m.logger.Info().Dur("interval", constants.ChallengeSweepInterval).Msg("challenge sweep started")
}

func (m *Manager) Stop() {
	close(m.shutdown)
	<-m.done
	m.logger.Info().Msg("challenge sweep stopped")
}
