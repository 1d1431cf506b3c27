package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Krutik08064/CricSaga-Bot/internal/database"
	"github.com/Krutik08064/CricSaga-Bot/internal/domain"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const patternColumns = `player_id, opponent_id, total_matches, wins, losses,
	recent_count, window_reset_at, is_flagged, flag_reason, updated_at`

// PatternRepository persists directed head-to-head aggregates and the
// suspicious-activity audit trail consumed by the anti-cheat monitor.
type PatternRepository struct {
	db     database.DBTX
	sqlDB  *sql.DB
	logger zerolog.Logger
}

func NewPatternRepository(sqlDB *sql.DB, logger zerolog.Logger) *PatternRepository {
	return &PatternRepository{db: sqlDB, sqlDB: sqlDB, logger: logger}
}

func (r *PatternRepository) WithTx(tx *sql.Tx) *PatternRepository {
	return &PatternRepository{db: tx, sqlDB: r.sqlDB, logger: r.logger}
}

// Get returns the directed pattern row, or nil when the pair has no history.
func (r *PatternRepository) Get(ctx context.Context, playerID, opponentID int64) (*domain.MatchPattern, error) {
	var p domain.MatchPattern
	err := r.db.QueryRowContext(ctx,
		`SELECT `+patternColumns+` FROM match_patterns WHERE player_id = ? AND opponent_id = ?`,
		playerID, opponentID).Scan(
		&p.PlayerID, &p.OpponentID, &p.TotalMatches, &p.Wins, &p.Losses,
		&p.RecentCount, &p.WindowResetAt, &p.IsFlagged, &p.FlagReason, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pattern (%d, %d): %w", playerID, opponentID, err)
	}
	return &p, nil
}

// Upsert writes the full pattern row.
func (r *PatternRepository) Upsert(ctx context.Context, p domain.MatchPattern) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO match_patterns (`+patternColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (player_id, opponent_id) DO UPDATE SET
		     total_matches = excluded.total_matches,
		     wins = excluded.wins,
		     losses = excluded.losses,
		     recent_count = excluded.recent_count,
		     window_reset_at = excluded.window_reset_at,
		     is_flagged = excluded.is_flagged,
		     flag_reason = excluded.flag_reason,
		     updated_at = excluded.updated_at`,
		p.PlayerID, p.OpponentID, p.TotalMatches, p.Wins, p.Losses,
		p.RecentCount, p.WindowResetAt, p.IsFlagged, p.FlagReason, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert pattern (%d, %d): %w", p.PlayerID, p.OpponentID, err)
	}
	return nil
}

// AppendActivity inserts one suspicious-activity audit row. Rows are
// append-only; only the out-of-scope administrative review flow mutates
// their review fields.
func (r *PatternRepository) AppendActivity(ctx context.Context, a domain.SuspiciousActivity) error {
	id := a.ID
	if id == "" {
		var err error
		id, err = gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
	}
	status := a.ReviewStatus
	if status == "" {
		status = domain.ReviewUnreviewed
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO suspicious_activities
		     (id, player_id, activity_type, opponent_id, reason, trust_impact, review_status, reviewed_by, review_action, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, a.PlayerID, a.ActivityType, a.OpponentID, a.Reason, a.TrustImpact,
		string(status), a.ReviewedBy, a.ReviewAction, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append suspicious activity for %d: %w", a.PlayerID, err)
	}
	return nil
}

// ListActivities returns the most recent audit rows for a player.
func (r *PatternRepository) ListActivities(ctx context.Context, playerID int64, limit int) ([]domain.SuspiciousActivity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, player_id, activity_type, opponent_id, reason, trust_impact,
		        review_status, reviewed_by, review_action, created_at
		 FROM suspicious_activities
		 WHERE player_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list suspicious activities for %d: %w", playerID, err)
	}
	defer rows.Close()

	var activities []domain.SuspiciousActivity
	for rows.Next() {
		var a domain.SuspiciousActivity
		var status string
		var reviewedBy sql.NullInt64
		if err := rows.Scan(&a.ID, &a.PlayerID, &a.ActivityType, &a.OpponentID, &a.Reason,
			&a.TrustImpact, &status, &reviewedBy, &a.ReviewAction, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan suspicious activity: %w", err)
		}
		a.ReviewStatus = domain.ReviewStatus(status)
		if reviewedBy.Valid {
			a.ReviewedBy = &reviewedBy.Int64
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
