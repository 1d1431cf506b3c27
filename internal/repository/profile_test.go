package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/Krutik08064/CricSaga-Bot/internal/constants"
	"github.com/Krutik08064/CricSaga-Bot/internal/database"
	"github.com/Krutik08064/CricSaga-Bot/internal/domain"
	"github.com/rs/zerolog"
)

func newTestProfileRepo(t *testing.T) *ProfileRepository {
	t.Helper()
	db, err := database.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewProfileRepository(db, zerolog.Nop())
}

func winUpdate(p *domain.PlayerCareerProfile) ProfileMatchUpdate {
	return ProfileMatchUpdate{
		PlayerID:           p.PlayerID,
		Rating:             p.Rating + 16,
		RankTier:           p.RankTier,
		TotalMatches:       p.TotalMatches + 1,
		Wins:               p.Wins + 1,
		Losses:             p.Losses,
		CurrentStreak:      p.CurrentStreak + 1,
		StreakType:         domain.StreakWin,
		HighestRating:      p.Rating + 16,
		TrustScore:         p.TrustScore,
		TotalRankedMatches: p.TotalRankedMatches + 1,
		GuardRankedMatches: p.TotalRankedMatches,
		GuardSuspended:     p.RatingSuspended,
	}
}

func TestGetOrCreateDefaults(t *testing.T) {
	repo := newTestProfileRepo(t)
	ctx := context.Background()

	p, err := repo.GetOrCreate(ctx, 1)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if p.Rating != constants.DefaultRating {
		t.Errorf("rating = %d, want %d", p.Rating, constants.DefaultRating)
	}
	if p.TrustScore != constants.DefaultTrustScore {
		t.Errorf("trust = %v, want %v", p.TrustScore, constants.DefaultTrustScore)
	}
	if p.RankTier != "Silver III" {
		t.Errorf("tier = %s, want Silver III", p.RankTier)
	}

	// A second call returns the same row rather than resetting it.
	again, err := repo.GetOrCreate(ctx, 1)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if !again.CreatedAt.Equal(p.CreatedAt) {
		t.Error("GetOrCreate replaced the existing profile")
	}
}

func TestGetUnknownPlayer(t *testing.T) {
	repo := newTestProfileRepo(t)
	_, err := repo.Get(context.Background(), 404)
	if !errors.Is(err, domain.ErrProfileNotFound) {
		t.Errorf("err = %v, want ErrProfileNotFound", err)
	}
}

func TestApplyMatchUpdateGuards(t *testing.T) {
	repo := newTestProfileRepo(t)
	ctx := context.Background()

	p, err := repo.GetOrCreate(ctx, 1)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	applied, err := repo.ApplyMatchUpdate(ctx, winUpdate(p))
	if err != nil {
		t.Fatalf("ApplyMatchUpdate failed: %v", err)
	}
	if !applied {
		t.Fatal("update with a fresh guard did not land")
	}

	// Replaying the same update must miss: the guard total no longer matches.
	applied, err = repo.ApplyMatchUpdate(ctx, winUpdate(p))
	if err != nil {
		t.Fatalf("ApplyMatchUpdate failed: %v", err)
	}
	if applied {
		t.Fatal("stale guard update landed")
	}

	// Suspension toggled after the read also blocks the write.
	p, err = repo.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := repo.SetSuspended(ctx, 1, true); err != nil {
		t.Fatalf("SetSuspended failed: %v", err)
	}
	applied, err = repo.ApplyMatchUpdate(ctx, winUpdate(p))
	if err != nil {
		t.Fatalf("ApplyMatchUpdate failed: %v", err)
	}
	if applied {
		t.Fatal("update landed despite suspension toggle after read")
	}
}

func TestSetSuspendedAndReset(t *testing.T) {
	repo := newTestProfileRepo(t)
	ctx := context.Background()

	if err := repo.SetSuspended(ctx, 404, true); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Errorf("SetSuspended on unknown player: %v", err)
	}
	if err := repo.Reset(ctx, 404); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Errorf("Reset on unknown player: %v", err)
	}

	p, err := repo.GetOrCreate(ctx, 1)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if _, err := repo.ApplyMatchUpdate(ctx, winUpdate(p)); err != nil {
		t.Fatalf("ApplyMatchUpdate failed: %v", err)
	}
	if err := repo.SetSuspended(ctx, 1, true); err != nil {
		t.Fatalf("SetSuspended failed: %v", err)
	}

	if err := repo.Reset(ctx, 1); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	p, err = repo.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.Rating != constants.DefaultRating || p.TotalMatches != 0 || p.Wins != 0 {
		t.Errorf("profile not reset: %+v", p)
	}
	if p.RatingSuspended || p.AccountFlagged {
		t.Errorf("flags survived reset: %+v", p)
	}
	if p.StreakType != domain.StreakNone || p.CurrentStreak != 0 {
		t.Errorf("streak survived reset: %+v", p)
	}
}

func TestTopByRatingOrdersAndTiebreaks(t *testing.T) {
	repo := newTestProfileRepo(t)
	ctx := context.Background()

	for _, id := range []int64{3, 1, 2} {
		if _, err := repo.GetOrCreate(ctx, id); err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
	}
	p, _ := repo.Get(ctx, 2)
	if _, err := repo.ApplyMatchUpdate(ctx, winUpdate(p)); err != nil {
		t.Fatalf("ApplyMatchUpdate failed: %v", err)
	}

	top, err := repo.TopByRating(ctx, 10)
	if err != nil {
		t.Fatalf("TopByRating failed: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("got %d profiles, want 3", len(top))
	}
	if top[0].PlayerID != 2 {
		t.Errorf("highest rating not first: %+v", top[0])
	}
	// Equal ratings order by player id.
	if top[1].PlayerID != 1 || top[2].PlayerID != 3 {
		t.Errorf("tiebreak order = %d, %d, want 1, 3", top[1].PlayerID, top[2].PlayerID)
	}
}

func TestGetMany(t *testing.T) {
	repo := newTestProfileRepo(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		if _, err := repo.GetOrCreate(ctx, id); err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
	}

	got, err := repo.GetMany(ctx, []int64{1, 3, 99})
	if err != nil {
		t.Fatalf("GetMany failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d profiles, want 2", len(got))
	}
	if _, ok := got[99]; ok {
		t.Error("unknown id present in result")
	}

	empty, err := repo.GetMany(ctx, nil)
	if err != nil {
		t.Fatalf("GetMany with no ids failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d profiles for empty id set", len(empty))
	}
}
