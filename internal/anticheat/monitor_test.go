package anticheat

import (
	"context"
	"testing"
	"time"

	"github.com/Krutik08064/CricSaga-Bot/internal/database"
	"github.com/Krutik08064/CricSaga-Bot/internal/repository"
	"github.com/rs/zerolog"
)

func newTestMonitor(t *testing.T) (*Monitor, *repository.PatternRepository) {
	t.Helper()
	db, err := database.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	patterns := repository.NewPatternRepository(db, zerolog.Nop())
	profiles := repository.NewProfileRepository(db, zerolog.Nop())
	return NewMonitor(patterns, profiles, zerolog.Nop()), patterns
}

func TestRecordResultCounts(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()
	now := time.Now().UTC()

	up, err := m.RecordResult(ctx, 1, 2, ResultWin, now)
	if err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}
	if up.Pattern.TotalMatches != 1 || up.Pattern.Wins != 1 || up.Pattern.Losses != 0 {
		t.Errorf("pattern after one win: %+v", up.Pattern)
	}
	if up.NewlyFlagged {
		t.Error("flag raised on first match")
	}

	up, err = m.RecordResult(ctx, 1, 2, ResultLoss, now)
	if err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}
	if up.Pattern.TotalMatches != 2 || up.Pattern.Losses != 1 {
		t.Errorf("pattern after a loss: %+v", up.Pattern)
	}

	// No-result counts toward the pattern but not either column.
	up, err = m.RecordResult(ctx, 1, 2, ResultNoResult, now)
	if err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}
	if up.Pattern.TotalMatches != 3 || up.Pattern.Wins != 1 || up.Pattern.Losses != 1 {
		t.Errorf("pattern after no-result: %+v", up.Pattern)
	}
	if up.Pattern.RecentCount != 3 {
		t.Errorf("recent count = %d, want 3", up.Pattern.RecentCount)
	}
}

func TestRecordResultIsDirected(t *testing.T) {
	m, patterns := newTestMonitor(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := m.RecordResult(ctx, 1, 2, ResultWin, now); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}

	reverse, err := patterns.Get(ctx, 2, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if reverse != nil {
		t.Errorf("reverse direction written without a call: %+v", reverse)
	}
}

func TestFlagRaisedOnceAboveThreshold(t *testing.T) {
	m, patterns := newTestMonitor(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 4; i++ {
		up, err := m.RecordResult(ctx, 1, 2, ResultWin, now)
		if err != nil {
			t.Fatalf("RecordResult %d failed: %v", i, err)
		}
		if up.NewlyFlagged {
			t.Fatalf("flag raised at recent count %d", up.Pattern.RecentCount)
		}
	}

	// The fifth match in the window crosses the threshold.
	up, err := m.RecordResult(ctx, 1, 2, ResultWin, now)
	if err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}
	if !up.NewlyFlagged {
		t.Fatal("fifth match in window did not raise the flag")
	}
	if up.TrustImpact != -10 {
		t.Errorf("trust impact = %v, want -10", up.TrustImpact)
	}
	if up.Pattern.FlagReason == "" {
		t.Error("flag raised without a reason")
	}

	// Raised once: the sixth match keeps the flag but reports no change and
	// appends no second activity row.
	up, err = m.RecordResult(ctx, 1, 2, ResultWin, now)
	if err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}
	if up.NewlyFlagged || up.TrustImpact != 0 {
		t.Errorf("flag re-raised: %+v", up)
	}
	if !up.Pattern.IsFlagged {
		t.Error("flag dropped on subsequent match")
	}

	activities, err := patterns.ListActivities(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ListActivities failed: %v", err)
	}
	if len(activities) != 1 {
		t.Errorf("got %d activity rows, want 1", len(activities))
	}
}

func TestWindowResets(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()
	start := time.Now().UTC().Add(-30 * time.Hour)

	for i := 0; i < 4; i++ {
		if _, err := m.RecordResult(ctx, 1, 2, ResultWin, start); err != nil {
			t.Fatalf("RecordResult failed: %v", err)
		}
	}

	// 30 hours later the window restarts, so the next match is one-of-one
	// and does not flag.
	up, err := m.RecordResult(ctx, 1, 2, ResultWin, time.Now().UTC())
	if err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}
	if up.Pattern.RecentCount != 1 {
		t.Errorf("recent count after window reset = %d, want 1", up.Pattern.RecentCount)
	}
	if up.NewlyFlagged {
		t.Error("flag raised across window boundary")
	}
	if up.Pattern.TotalMatches != 5 {
		t.Errorf("lifetime total = %d, want 5", up.Pattern.TotalMatches)
	}
}

func TestIsRatingSuspended(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()

	// Unknown players are simply not suspended.
	suspended, err := m.IsRatingSuspended(ctx, 404)
	if err != nil {
		t.Fatalf("IsRatingSuspended failed: %v", err)
	}
	if suspended {
		t.Error("unknown player reported suspended")
	}

	if _, err := m.profiles.GetOrCreate(ctx, 7); err != nil {
		t.Fatalf("seed profile failed: %v", err)
	}
	if err := m.profiles.SetSuspended(ctx, 7, true); err != nil {
		t.Fatalf("SetSuspended failed: %v", err)
	}
	suspended, err = m.IsRatingSuspended(ctx, 7)
	if err != nil {
		t.Fatalf("IsRatingSuspended failed: %v", err)
	}
	if !suspended {
		t.Error("suspended player reported active")
	}
}
