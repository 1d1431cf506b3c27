// Package anticheat watches head-to-head patterns for win-trading signals.
// It flags and records, but under current policy never scales rating deltas;
// only an explicit suspension stops a rating change.
package anticheat

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Krutik08064/CricSaga-Bot/internal/constants"
	"github.com/Krutik08064/CricSaga-Bot/internal/domain"
	"github.com/Krutik08064/CricSaga-Bot/internal/repository"
	"github.com/rs/zerolog"
)

type HeadToHeadResult int

const (
	ResultNoResult HeadToHeadResult = iota
	ResultWin
	ResultLoss
)

// PatternUpdate reports what one directed RecordResult call changed.
type PatternUpdate struct {
	Pattern      domain.MatchPattern
	NewlyFlagged bool
	TrustImpact  float64 // applied to the player's trust score when flagged
}

type Monitor struct {
	patterns *repository.PatternRepository
	profiles *repository.ProfileRepository
	logger   zerolog.Logger
}

func NewMonitor(patterns *repository.PatternRepository, profiles *repository.ProfileRepository, logger zerolog.Logger) *Monitor {
	return &Monitor{patterns: patterns, profiles: profiles, logger: logger}
}

// WithTx rebinds the monitor's stores to a transaction so pattern and audit
// writes commit or roll back with the rest of the match.
func (m *Monitor) WithTx(tx *sql.Tx) *Monitor {
	return &Monitor{
		patterns: m.patterns.WithTx(tx),
		profiles: m.profiles,
		logger:   m.logger,
	}
}

// RecordResult updates the directed (player, opponent) pattern for one
// completed match: head-to-head counts, the rolling 24h window, and the
// repeat-opponent flag. A SuspiciousActivity row is appended only when the
// flag is newly raised.
func (m *Monitor) RecordResult(ctx context.Context, playerID, opponentID int64, result HeadToHeadResult, now time.Time) (*PatternUpdate, error) {
	existing, err := m.patterns.Get(ctx, playerID, opponentID)
	if err != nil {
		return nil, err
	}

	pattern := domain.MatchPattern{
		PlayerID:      playerID,
		OpponentID:    opponentID,
		WindowResetAt: now,
	}
	if existing != nil {
		pattern = *existing
	}

	pattern.TotalMatches++
	switch result {
	case ResultWin:
		pattern.Wins++
	case ResultLoss:
		pattern.Losses++
	}

	if now.Sub(pattern.WindowResetAt) > constants.RepeatOpponentWindow {
		pattern.RecentCount = 0
		pattern.WindowResetAt = now
	}
	pattern.RecentCount++

	update := &PatternUpdate{}
	if !pattern.IsFlagged && pattern.RecentCount > constants.RepeatOpponentThreshold {
		pattern.IsFlagged = true
		pattern.FlagReason = fmt.Sprintf("%d matches against opponent %d within 24h",
			pattern.RecentCount, opponentID)
		update.NewlyFlagged = true
		update.TrustImpact = -constants.RepeatFlagTrustPenalty

		m.logger.Warn().
			Int64("player_id", playerID).
			Int64("opponent_id", opponentID).
			Int("recent_count", pattern.RecentCount).
			Msg("repeat-opponent pattern flagged")

		if err := m.patterns.AppendActivity(ctx, domain.SuspiciousActivity{
			PlayerID:     playerID,
			ActivityType: domain.ActivityRepeatOpponent,
			OpponentID:   opponentID,
			Reason:       pattern.FlagReason,
			TrustImpact:  update.TrustImpact,
			ReviewStatus: domain.ReviewUnreviewed,
			CreatedAt:    now,
		}); err != nil {
			return nil, err
		}
	}

	pattern.UpdatedAt = now
	if err := m.patterns.Upsert(ctx, pattern); err != nil {
		return nil, err
	}

	update.Pattern = pattern
	return update, nil
}

// IsRatingSuspended reports the profile's administrative suspension flag.
// Suspended players still get match records and pattern updates, but their
// rating and streak stay untouched.
func (m *Monitor) IsRatingSuspended(ctx context.Context, playerID int64) (bool, error) {
	profile, err := m.profiles.Get(ctx, playerID)
	if err == domain.ErrProfileNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return profile.RatingSuspended, nil
}
