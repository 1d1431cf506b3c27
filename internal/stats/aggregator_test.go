package stats

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/Krutik08064/CricSaga-Bot/internal/anticheat"
	"github.com/Krutik08064/CricSaga-Bot/internal/database"
	"github.com/Krutik08064/CricSaga-Bot/internal/domain"
	"github.com/Krutik08064/CricSaga-Bot/internal/rating"
	"github.com/Krutik08064/CricSaga-Bot/internal/repository"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog"
)

type testEngine struct {
	agg      *Aggregator
	profiles *repository.ProfileRepository
	patterns *repository.PatternRepository
	matches  *repository.MatchRepository
	db       *sql.DB
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	db, err := database.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	profiles := repository.NewProfileRepository(db, zerolog.Nop())
	patterns := repository.NewPatternRepository(db, zerolog.Nop())
	matches := repository.NewMatchRepository(db, zerolog.Nop())
	monitor := anticheat.NewMonitor(patterns, profiles, zerolog.Nop())
	agg := NewAggregator(db, profiles, matches, monitor, rating.IdentityPolicy{}, zerolog.Nop())

	return &testEngine{agg: agg, profiles: profiles, patterns: patterns, matches: matches, db: db}
}

func winnerOf(id int64) *int64 { return &id }

func resultP1Wins(matchID string, p1, p2 int64) domain.MatchResult {
	return domain.MatchResult{
		MatchID:   matchID,
		Player1ID: p1,
		Player2ID: p2,
		WinnerID:  winnerOf(p1),
		P1Score:   120, P1Wickets: 4, P1Overs: 5.0,
		P2Score: 115, P2Wickets: 6, P2Overs: 5.0,
	}
}

func TestCompleteMatchEvenRatings(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Fresh 1000 vs 1000 profiles, P1 wins by 5 runs (below the bonus
	// threshold): deltas must be exactly +16 / -16.
	out, err := e.agg.CompleteMatch(ctx, resultP1Wins("m-1", 1, 2))
	if err != nil {
		t.Fatalf("CompleteMatch failed: %v", err)
	}

	if out.P1After.Rating != 1016 {
		t.Errorf("p1 rating = %d, want 1016", out.P1After.Rating)
	}
	if out.P2After.Rating != 984 {
		t.Errorf("p2 rating = %d, want 984", out.P2After.Rating)
	}
	if out.Record.P1RatingDelta != 16 || out.Record.P2RatingDelta != -16 {
		t.Errorf("deltas = (%d, %d), want (16, -16)",
			out.Record.P1RatingDelta, out.Record.P2RatingDelta)
	}

	if out.P1After.Wins != 1 || out.P1After.CurrentStreak != 1 || out.P1After.StreakType != domain.StreakWin {
		t.Errorf("p1 win bookkeeping wrong: %+v", out.P1After)
	}
	if out.P2After.Losses != 1 || out.P2After.CurrentStreak != -1 || out.P2After.StreakType != domain.StreakLoss {
		t.Errorf("p2 loss bookkeeping wrong: %+v", out.P2After)
	}
	if out.P1After.HighestRating != 1016 {
		t.Errorf("p1 highest rating = %d, want 1016", out.P1After.HighestRating)
	}
	checkProfileInvariants(t, out.P1After)
	checkProfileInvariants(t, out.P2After)
}

func TestCompleteMatchMarginBonus(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res := resultP1Wins("m-1", 1, 2)
	res.P1Score = 180
	res.P2Score = 115 // 65-run margin -> +6 bonus

	out, err := e.agg.CompleteMatch(ctx, res)
	if err != nil {
		t.Fatalf("CompleteMatch failed: %v", err)
	}
	if out.Record.P1RatingDelta != 22 {
		t.Errorf("winner delta = %d, want 22 (16 base + 6 bonus)", out.Record.P1RatingDelta)
	}
	// The bonus also softens the loser's penalty; the pair is not zero-sum.
	if out.Record.P2RatingDelta != -10 {
		t.Errorf("loser delta = %d, want -10 (16 base penalty - 6 bonus)", out.Record.P2RatingDelta)
	}
}

func TestCompleteMatchIsIdempotentOnMatchID(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.agg.CompleteMatch(ctx, resultP1Wins("m-dup", 1, 2))
	if err != nil {
		t.Fatalf("first CompleteMatch failed: %v", err)
	}

	// Simulated caller retry with the same match result.
	second, err := e.agg.CompleteMatch(ctx, resultP1Wins("m-dup", 1, 2))
	if err != nil {
		t.Fatalf("retried CompleteMatch failed: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("replay not reported as duplicate")
	}

	ignoreStamp := cmpopts.IgnoreFields(domain.PlayerCareerProfile{}, "UpdatedAt")
	if diff := cmp.Diff(first.P1After, second.P1After, ignoreStamp); diff != "" {
		t.Errorf("p1 profile changed on replay (-first +second):\n%s", diff)
	}
	if second.P1After.TotalMatches != 1 {
		t.Errorf("total matches = %d after replay, want 1", second.P1After.TotalMatches)
	}
	if second.Record.MatchID != "m-dup" {
		t.Errorf("record id = %s, want m-dup", second.Record.MatchID)
	}
}

func TestCompleteMatchNoResult(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res := resultP1Wins("m-nr", 1, 2)
	res.WinnerID = nil

	out, err := e.agg.CompleteMatch(ctx, res)
	if err != nil {
		t.Fatalf("CompleteMatch failed: %v", err)
	}

	// Equal ratings, no result: nothing moves except the record and the
	// ranked-match counter.
	if out.P1After.Rating != 1000 || out.P2After.Rating != 1000 {
		t.Errorf("ratings moved on even no-result: %d / %d", out.P1After.Rating, out.P2After.Rating)
	}
	if out.P1After.TotalMatches != 0 || out.P1After.Wins != 0 || out.P1After.Losses != 0 {
		t.Errorf("no-result must not count as a decided match: %+v", out.P1After)
	}
	if out.P1After.TotalRankedMatches != 1 {
		t.Errorf("total ranked matches = %d, want 1", out.P1After.TotalRankedMatches)
	}
	if out.Record.WinnerID != nil {
		t.Error("record winner must stay null for no-result")
	}
	checkProfileInvariants(t, out.P1After)
}

func TestStaleProfileWriteBlockedByNoResultCommit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Uneven ratings so even a no-result moves player 1's rating.
	p2, err := e.profiles.GetOrCreate(ctx, 2)
	if err != nil {
		t.Fatalf("seed profile failed: %v", err)
	}
	applied, err := e.profiles.ApplyMatchUpdate(ctx, repository.ProfileMatchUpdate{
		PlayerID:           2,
		Rating:             1200,
		RankTier:           rating.TierForRating(1200),
		StreakType:         domain.StreakNone,
		HighestRating:      1200,
		TrustScore:         p2.TrustScore,
		GuardRankedMatches: p2.TotalRankedMatches,
		GuardSuspended:     p2.RatingSuspended,
	})
	if err != nil || !applied {
		t.Fatalf("seed update failed: applied=%v err=%v", applied, err)
	}

	// One caller reads player 1, then a no-result match commits underneath
	// it: total_matches is untouched but rating and the ranked counter move.
	stale, err := e.profiles.GetOrCreate(ctx, 1)
	if err != nil {
		t.Fatalf("profile read failed: %v", err)
	}
	res := resultP1Wins("nr-race", 1, 2)
	res.WinnerID = nil
	out, err := e.agg.CompleteMatch(ctx, res)
	if err != nil {
		t.Fatalf("CompleteMatch failed: %v", err)
	}
	if out.P1After.Rating == stale.Rating {
		t.Fatal("scenario needs the no-result to move the rating")
	}
	if out.P1After.TotalMatches != stale.TotalMatches {
		t.Fatal("scenario needs total_matches unchanged by the no-result")
	}

	// The write built from the stale read must miss the guard; landing it
	// would silently erase the committed rating change and ranked count.
	applied, err = e.profiles.ApplyMatchUpdate(ctx, repository.ProfileMatchUpdate{
		PlayerID:           1,
		Rating:             stale.Rating + 16,
		RankTier:           stale.RankTier,
		TotalMatches:       stale.TotalMatches + 1,
		Wins:               stale.Wins + 1,
		Losses:             stale.Losses,
		CurrentStreak:      1,
		StreakType:         domain.StreakWin,
		HighestRating:      stale.Rating + 16,
		TrustScore:         stale.TrustScore,
		TotalRankedMatches: stale.TotalRankedMatches + 1,
		GuardRankedMatches: stale.TotalRankedMatches,
		GuardSuspended:     stale.RatingSuspended,
	})
	if err != nil {
		t.Fatalf("ApplyMatchUpdate failed: %v", err)
	}
	if applied {
		t.Fatal("stale profile write landed over a committed no-result match")
	}

	current, err := e.profiles.Get(ctx, 1)
	if err != nil {
		t.Fatalf("profile read failed: %v", err)
	}
	if current.Rating != out.P1After.Rating || current.TotalRankedMatches != out.P1After.TotalRankedMatches {
		t.Errorf("committed state changed: rating %d, ranked %d, want %d, %d",
			current.Rating, current.TotalRankedMatches,
			out.P1After.Rating, out.P1After.TotalRankedMatches)
	}
}

func TestCompleteMatchSuspendedPlayer(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.profiles.GetOrCreate(ctx, 2); err != nil {
		t.Fatalf("seed profile failed: %v", err)
	}
	if err := e.profiles.SetSuspended(ctx, 2, true); err != nil {
		t.Fatalf("suspend failed: %v", err)
	}

	out, err := e.agg.CompleteMatch(ctx, resultP1Wins("m-susp", 1, 2))
	if err != nil {
		t.Fatalf("CompleteMatch failed: %v", err)
	}

	// The suspended loser keeps rating and streak but the match is still
	// recorded and the pattern row updated.
	if out.P2After.Rating != 1000 {
		t.Errorf("suspended rating moved to %d", out.P2After.Rating)
	}
	if out.P2After.CurrentStreak != 0 || out.P2After.StreakType != domain.StreakNone {
		t.Errorf("suspended streak moved: %+v", out.P2After)
	}
	if out.Record.P2RatingDelta != 0 {
		t.Errorf("recorded delta for suspended player = %d, want 0", out.Record.P2RatingDelta)
	}

	// The opponent's rating still changes.
	if out.P1After.Rating != 1016 {
		t.Errorf("opponent rating = %d, want 1016", out.P1After.Rating)
	}

	rec, err := e.matches.GetByID(ctx, "m-susp")
	if err != nil || rec == nil {
		t.Fatalf("match record missing: %v", err)
	}
	pattern, err := e.patterns.Get(ctx, 2, 1)
	if err != nil {
		t.Fatalf("pattern get failed: %v", err)
	}
	if pattern == nil || pattern.TotalMatches != 1 {
		t.Errorf("suspended player's pattern not updated: %+v", pattern)
	}
}

func TestRepeatOpponentFlagging(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Five matches against the same opponent within 24h crosses the
	// threshold on the fifth.
	for i := 0; i < 5; i++ {
		if _, err := e.agg.CompleteMatch(ctx, resultP1Wins(fmt.Sprintf("m-%d", i), 1, 2)); err != nil {
			t.Fatalf("match %d failed: %v", i, err)
		}
	}

	pattern, err := e.patterns.Get(ctx, 1, 2)
	if err != nil {
		t.Fatalf("pattern get failed: %v", err)
	}
	if !pattern.IsFlagged {
		t.Fatal("pattern not flagged after 5 matches in 24h")
	}
	if pattern.FlagReason == "" {
		t.Error("flag raised without a reason")
	}

	activities, err := e.patterns.ListActivities(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list activities failed: %v", err)
	}
	if len(activities) != 1 {
		t.Fatalf("got %d suspicious activity rows, want exactly 1", len(activities))
	}
	if activities[0].ActivityType != domain.ActivityRepeatOpponent {
		t.Errorf("activity type = %s", activities[0].ActivityType)
	}
	if activities[0].ReviewStatus != domain.ReviewUnreviewed {
		t.Errorf("review status = %s, want unreviewed", activities[0].ReviewStatus)
	}

	// Trust takes the recorded impact, flags stay informational: the
	// rating delta itself is unscaled under current policy.
	p1, err := e.profiles.Get(ctx, 1)
	if err != nil {
		t.Fatalf("profile get failed: %v", err)
	}
	if p1.TrustScore != 90 {
		t.Errorf("trust score = %v, want 90", p1.TrustScore)
	}
	if !p1.AccountFlagged {
		t.Error("account flag not raised")
	}
	checkProfileInvariants(t, p1)
}

func TestRatingFloorAtZero(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Both players near the floor: an even-match loss of 16 must stop at 0
	// and the recorded delta must reflect the floored landing, not -16.
	for _, id := range []int64{1, 2} {
		p, err := e.profiles.GetOrCreate(ctx, id)
		if err != nil {
			t.Fatalf("seed profile failed: %v", err)
		}
		applied, err := e.profiles.ApplyMatchUpdate(ctx, repository.ProfileMatchUpdate{
			PlayerID:           id,
			Rating:             10,
			RankTier:           rating.TierForRating(10),
			StreakType:         domain.StreakNone,
			HighestRating:      p.HighestRating,
			TrustScore:         p.TrustScore,
			GuardRankedMatches: p.TotalRankedMatches,
			GuardSuspended:     p.RatingSuspended,
		})
		if err != nil || !applied {
			t.Fatalf("seed update failed: applied=%v err=%v", applied, err)
		}
	}

	out, err := e.agg.CompleteMatch(ctx, resultP1Wins("floor-1", 1, 2))
	if err != nil {
		t.Fatalf("CompleteMatch failed: %v", err)
	}
	if out.P2After.Rating != 0 {
		t.Errorf("loser rating = %d, want floored at 0", out.P2After.Rating)
	}
	if out.Record.P2RatingDelta != -10 {
		t.Errorf("loser delta = %d, want -10 (floor-aware)", out.Record.P2RatingDelta)
	}
	if out.P2After.RankTier != "Bronze III" {
		t.Errorf("tier = %s, want Bronze III", out.P2After.RankTier)
	}
	if out.P1After.Rating != 26 {
		t.Errorf("winner rating = %d, want 26", out.P1After.Rating)
	}
	checkProfileInvariants(t, out.P1After)
	checkProfileInvariants(t, out.P2After)
}

func TestCompleteMatchValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.agg.CompleteMatch(ctx, domain.MatchResult{MatchID: "x", Player1ID: 1, Player2ID: 1}); err == nil {
		t.Error("identical players accepted")
	}
	if _, err := e.agg.CompleteMatch(ctx, domain.MatchResult{Player1ID: 1, Player2ID: 2}); err == nil {
		t.Error("missing match id accepted")
	}
	bad := int64(99)
	if _, err := e.agg.CompleteMatch(ctx, domain.MatchResult{MatchID: "x", Player1ID: 1, Player2ID: 2, WinnerID: &bad}); err == nil {
		t.Error("non-participant winner accepted")
	}
}

func TestStreakProgression(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := e.agg.CompleteMatch(ctx, resultP1Wins(fmt.Sprintf("s-%d", i), 1, 2)); err != nil {
			t.Fatalf("match failed: %v", err)
		}
	}
	p1, _ := e.profiles.Get(ctx, 1)
	if p1.CurrentStreak != 3 || p1.StreakType != domain.StreakWin {
		t.Errorf("streak = %d/%s, want 3/win", p1.CurrentStreak, p1.StreakType)
	}

	// A loss resets into a loss streak.
	res := resultP1Wins("s-break", 1, 2)
	res.WinnerID = winnerOf(2)
	if _, err := e.agg.CompleteMatch(ctx, res); err != nil {
		t.Fatalf("match failed: %v", err)
	}
	p1, _ = e.profiles.Get(ctx, 1)
	if p1.CurrentStreak != -1 || p1.StreakType != domain.StreakLoss {
		t.Errorf("streak = %d/%s after loss, want -1/loss", p1.CurrentStreak, p1.StreakType)
	}
	checkProfileInvariants(t, p1)
}

func TestHighestRatingIsSticky(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.agg.CompleteMatch(ctx, resultP1Wins("h-1", 1, 2)); err != nil {
		t.Fatalf("match failed: %v", err)
	}
	res := resultP1Wins("h-2", 1, 2)
	res.WinnerID = winnerOf(2)
	if _, err := e.agg.CompleteMatch(ctx, res); err != nil {
		t.Fatalf("match failed: %v", err)
	}

	p1, _ := e.profiles.Get(ctx, 1)
	if p1.HighestRating != 1016 {
		t.Errorf("highest rating = %d, want 1016 kept after the loss", p1.HighestRating)
	}
	if p1.Rating >= 1016 {
		t.Errorf("rating = %d, should have dropped below the peak", p1.Rating)
	}
}

func TestPlayedAtDefaultsToNow(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.agg.CompleteMatch(context.Background(), resultP1Wins("t-1", 1, 2))
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if time.Since(out.Record.PlayedAt) > time.Minute {
		t.Errorf("played_at not defaulted: %v", out.Record.PlayedAt)
	}
}

func checkProfileInvariants(t *testing.T, p *domain.PlayerCareerProfile) {
	t.Helper()
	if p.TotalMatches != p.Wins+p.Losses {
		t.Errorf("invariant broken for %d: total %d != wins %d + losses %d",
			p.PlayerID, p.TotalMatches, p.Wins, p.Losses)
	}
	if p.TrustScore < 0 || p.TrustScore > 100 {
		t.Errorf("trust score out of bounds for %d: %v", p.PlayerID, p.TrustScore)
	}
	if p.Rating < 0 {
		t.Errorf("rating below floor for %d: %d", p.PlayerID, p.Rating)
	}
	switch {
	case p.CurrentStreak > 0 && p.StreakType != domain.StreakWin:
		t.Errorf("streak sign/type mismatch for %d: %d/%s", p.PlayerID, p.CurrentStreak, p.StreakType)
	case p.CurrentStreak < 0 && p.StreakType != domain.StreakLoss:
		t.Errorf("streak sign/type mismatch for %d: %d/%s", p.PlayerID, p.CurrentStreak, p.StreakType)
	case p.CurrentStreak == 0 && p.StreakType != domain.StreakNone:
		t.Errorf("streak sign/type mismatch for %d: %d/%s", p.PlayerID, p.CurrentStreak, p.StreakType)
	}
}
