// Package stats owns the single write-transaction boundary of the ranked
// engine. CompleteMatch is the only writer of career aggregates: rating,
// streaks, win/loss counts, pattern rows, and the match record all commit
// together or not at all.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Krutik08064/CricSaga-Bot/internal/anticheat"
	"github.com/Krutik08064/CricSaga-Bot/internal/constants"
	"github.com/Krutik08064/CricSaga-Bot/internal/domain"
	"github.com/Krutik08064/CricSaga-Bot/internal/rating"
	"github.com/Krutik08064/CricSaga-Bot/internal/repository"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Aggregator struct {
	db       *sql.DB
	profiles *repository.ProfileRepository
	matches  *repository.MatchRepository
	monitor  *anticheat.Monitor
	policy   rating.MultiplierPolicy
	logger   zerolog.Logger
}

func NewAggregator(
	db *sql.DB,
	profiles *repository.ProfileRepository,
	matches *repository.MatchRepository,
	monitor *anticheat.Monitor,
	policy rating.MultiplierPolicy,
	logger zerolog.Logger,
) *Aggregator {
	return &Aggregator{
		db:       db,
		profiles: profiles,
		matches:  matches,
		monitor:  monitor,
		policy:   policy,
		logger:   logger,
	}
}

// CompleteMatch commits one finished match: rating deltas from the rating
// engine, anti-cheat pattern updates for both directions, both profile rows,
// and the append-only match record, as one atomic unit. A replay of an
// already committed match id returns the stored outcome without writing.
// Any write that fails to land rolls the whole transaction back and surfaces
// ErrStatsCommitFailed; retrying with the same result is safe because every
// profile write is guarded by the state it was read in.
func (a *Aggregator) CompleteMatch(ctx context.Context, result domain.MatchResult) (*domain.MatchOutcome, error) {
	if err := validateResult(result); err != nil {
		return nil, err
	}

	// Load both profiles concurrently, creating them on first ranked
	// activity. These reads also provide the guards for the conditional
	// writes below.
	var p1, p2 *domain.PlayerCareerProfile
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p1, err = a.profiles.GetOrCreate(gCtx, result.Player1ID)
		return err
	})
	g.Go(func() error {
		var err error
		p2, err = a.profiles.GetOrCreate(gCtx, result.Player2ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	if existing, err := a.matches.GetByID(ctx, result.MatchID); err != nil {
		return nil, err
	} else if existing != nil {
		a.logger.Info().Str("match_id", result.MatchID).Msg("duplicate match result ignored")
		return &domain.MatchOutcome{P1After: p1, P2After: p2, Record: existing, Duplicate: true}, nil
	}

	now := result.PlayedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	outcome := outcomeFor(result)
	marginBonus := 0
	if outcome != rating.OutcomeNoResult {
		marginBonus = rating.PerformanceBonus(result.P1Score - result.P2Score)
	}
	change := rating.ComputeRatingChange(p1.Rating, p2.Rating, outcome, marginBonus)

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin stats transaction: %w", err)
	}
	defer tx.Rollback()

	txProfiles := a.profiles.WithTx(tx)
	txMatches := a.matches.WithTx(tx)
	txMonitor := a.monitor.WithTx(tx)

	// Pattern and audit rows update for both directions, suspended or not.
	up1, err := txMonitor.RecordResult(ctx, p1.PlayerID, p2.PlayerID, headToHead(result, p1.PlayerID), now)
	if err != nil {
		return nil, fmt.Errorf("failed to record pattern for %d: %w", p1.PlayerID, err)
	}
	up2, err := txMonitor.RecordResult(ctx, p2.PlayerID, p1.PlayerID, headToHead(result, p2.PlayerID), now)
	if err != nil {
		return nil, fmt.Errorf("failed to record pattern for %d: %w", p2.PlayerID, err)
	}

	deltaP1 := rating.ScaleDelta(change.DeltaA, a.policy.Multiplier(p1, &up1.Pattern))
	deltaP2 := rating.ScaleDelta(change.DeltaB, a.policy.Multiplier(p2, &up2.Pattern))

	after1 := applyResult(p1, deltaP1, headToHead(result, p1.PlayerID), up1)
	after2 := applyResult(p2, deltaP2, headToHead(result, p2.PlayerID), up2)

	if p1.RatingSuspended {
		a.logger.Info().Int64("player_id", p1.PlayerID).Str("match_id", result.MatchID).
			Msg("rating suspended, match recorded without rating change")
	}
	if p2.RatingSuspended {
		a.logger.Info().Int64("player_id", p2.PlayerID).Str("match_id", result.MatchID).
			Msg("rating suspended, match recorded without rating change")
	}

	// Both profile writes are conditional on the state read above and run in
	// ascending player-id order so concurrent completions can't deadlock.
	for _, u := range orderUpdates(buildUpdate(p1, after1), buildUpdate(p2, after2)) {
		applied, err := txProfiles.ApplyMatchUpdate(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("failed to apply profile update for %d: %w", u.PlayerID, err)
		}
		if !applied {
			a.logger.Error().
				Int64("player_id", u.PlayerID).
				Str("match_id", result.MatchID).
				Msg("profile write did not land, rolling back match commit")
			return nil, fmt.Errorf("profile %d changed concurrently: %w", u.PlayerID, domain.ErrStatsCommitFailed)
		}
	}

	record := buildRecord(result, p1, p2, after1, after2, now)
	if err := txMatches.Insert(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicateMatch) {
			// A concurrent call committed the same match id first; release
			// the transaction and fall back to the stored outcome.
			tx.Rollback()
			return a.replayOutcome(ctx, result.MatchID)
		}
		return nil, fmt.Errorf("failed to append match record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		a.logger.Error().Err(err).Str("match_id", result.MatchID).Msg("stats commit failed")
		return nil, fmt.Errorf("commit for match %s: %w", result.MatchID, domain.ErrStatsCommitFailed)
	}

	a.logger.Info().
		Str("match_id", result.MatchID).
		Int64("player1", p1.PlayerID).
		Int64("player2", p2.PlayerID).
		Int("p1_delta", record.P1RatingDelta).
		Int("p2_delta", record.P2RatingDelta).
		Msg("match committed")

	return &domain.MatchOutcome{P1After: after1, P2After: after2, Record: &record}, nil
}

func (a *Aggregator) replayOutcome(ctx context.Context, matchID string) (*domain.MatchOutcome, error) {
	record, err := a.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrStatsCommitFailed
	}
	p1, err := a.profiles.Get(ctx, record.Player1ID)
	if err != nil {
		return nil, err
	}
	p2, err := a.profiles.Get(ctx, record.Player2ID)
	if err != nil {
		return nil, err
	}
	return &domain.MatchOutcome{P1After: p1, P2After: p2, Record: record, Duplicate: true}, nil
}

func validateResult(r domain.MatchResult) error {
	if r.MatchID == "" {
		return fmt.Errorf("match result missing match id")
	}
	if r.Player1ID == r.Player2ID {
		return fmt.Errorf("match result has identical players: %d", r.Player1ID)
	}
	if r.WinnerID != nil && *r.WinnerID != r.Player1ID && *r.WinnerID != r.Player2ID {
		return fmt.Errorf("winner %d is not a participant", *r.WinnerID)
	}
	return nil
}

func outcomeFor(r domain.MatchResult) rating.Outcome {
	if r.WinnerID == nil {
		return rating.OutcomeNoResult
	}
	if *r.WinnerID == r.Player1ID {
		return rating.OutcomeAWins
	}
	return rating.OutcomeBWins
}

func headToHead(r domain.MatchResult, playerID int64) anticheat.HeadToHeadResult {
	if r.WinnerID == nil {
		return anticheat.ResultNoResult
	}
	if *r.WinnerID == playerID {
		return anticheat.ResultWin
	}
	return anticheat.ResultLoss
}

// applyResult computes the post-match profile for one player. A suspended
// player's rating, tier, and streak stay frozen; everything else (career
// counts, trust, flags) still moves.
func applyResult(p *domain.PlayerCareerProfile, delta int, res anticheat.HeadToHeadResult, up *anticheat.PatternUpdate) *domain.PlayerCareerProfile {
	after := *p

	if !p.RatingSuspended {
		after.Rating = rating.ApplyDelta(p.Rating, delta)
		after.RankTier = rating.TierForRating(after.Rating)
		after.CurrentStreak, after.StreakType = nextStreak(p.CurrentStreak, p.StreakType, res)
		if after.Rating > after.HighestRating {
			after.HighestRating = after.Rating
		}
	}

	switch res {
	case anticheat.ResultWin:
		after.Wins++
		after.TotalMatches++
	case anticheat.ResultLoss:
		after.Losses++
		after.TotalMatches++
	}
	after.TotalRankedMatches++

	after.TrustScore = clampTrust(p.TrustScore + up.TrustImpact)
	if up.NewlyFlagged {
		after.AccountFlagged = true
	}
	return &after
}

func nextStreak(current int, st domain.StreakType, res anticheat.HeadToHeadResult) (int, domain.StreakType) {
	switch res {
	case anticheat.ResultWin:
		if current > 0 {
			return current + 1, domain.StreakWin
		}
		return 1, domain.StreakWin
	case anticheat.ResultLoss:
		if current < 0 {
			return current - 1, domain.StreakLoss
		}
		return -1, domain.StreakLoss
	default:
		return current, st
	}
}

func clampTrust(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func buildUpdate(before, after *domain.PlayerCareerProfile) repository.ProfileMatchUpdate {
	return repository.ProfileMatchUpdate{
		PlayerID:           after.PlayerID,
		Rating:             after.Rating,
		RankTier:           after.RankTier,
		TotalMatches:       after.TotalMatches,
		Wins:               after.Wins,
		Losses:             after.Losses,
		CurrentStreak:      after.CurrentStreak,
		StreakType:         after.StreakType,
		HighestRating:      after.HighestRating,
		TrustScore:         after.TrustScore,
		AccountFlagged:     after.AccountFlagged,
		TotalRankedMatches: after.TotalRankedMatches,
		GuardRankedMatches: before.TotalRankedMatches,
		GuardSuspended:     before.RatingSuspended,
	}
}

func orderUpdates(a, b repository.ProfileMatchUpdate) [2]repository.ProfileMatchUpdate {
	if a.PlayerID < b.PlayerID {
		return [2]repository.ProfileMatchUpdate{a, b}
	}
	return [2]repository.ProfileMatchUpdate{b, a}
}

func buildRecord(r domain.MatchResult, p1, p2, after1, after2 *domain.PlayerCareerProfile, playedAt time.Time) domain.MatchRecord {
	return domain.MatchRecord{
		MatchID:        r.MatchID,
		Player1ID:      r.Player1ID,
		Player2ID:      r.Player2ID,
		WinnerID:       r.WinnerID,
		P1RatingBefore: p1.Rating,
		P1RatingAfter:  after1.Rating,
		P1RatingDelta:  after1.Rating - p1.Rating,
		P2RatingBefore: p2.Rating,
		P2RatingAfter:  after2.Rating,
		P2RatingDelta:  after2.Rating - p2.Rating,
		P1Score:        r.P1Score,
		P1Wickets:      r.P1Wickets,
		P1Overs:        r.P1Overs,
		P2Score:        r.P2Score,
		P2Wickets:      r.P2Wickets,
		P2Overs:        r.P2Overs,
		PlayedAt:       playedAt,
	}
}

// RecentMatches exposes a player's match history for the UI layer.
func (a *Aggregator) RecentMatches(ctx context.Context, playerID int64, limit int) ([]domain.MatchRecord, error) {
	if limit <= 0 {
		limit = constants.DefaultLeaderboardLimit
	}
	return a.matches.ListRecent(ctx, playerID, limit)
}
