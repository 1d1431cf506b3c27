package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Krutik08064/CricSaga-Bot/internal/database"
	"github.com/Krutik08064/CricSaga-Bot/internal/domain"
	"github.com/rs/zerolog"
)

// ErrDuplicateMatch surfaces a unique-key violation on match_records. The
// aggregator treats it as an idempotent replay of an already committed
// match, not a failure.
var ErrDuplicateMatch = errors.New("match record already exists")

const matchColumns = `match_id, player1_id, player2_id, winner_id,
	p1_rating_before, p1_rating_after, p1_rating_delta,
	p2_rating_before, p2_rating_after, p2_rating_delta,
	p1_score, p1_wickets, p1_overs, p2_score, p2_wickets, p2_overs, played_at`

type MatchRepository struct {
	db     database.DBTX
	sqlDB  *sql.DB
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{db: sqlDB, sqlDB: sqlDB, logger: logger}
}

func (r *MatchRepository) WithTx(tx *sql.Tx) *MatchRepository {
	return &MatchRepository{db: tx, sqlDB: r.sqlDB, logger: r.logger}
}

// Insert appends one immutable match record. Rows are never mutated after
// insert; the primary key on match_id makes replays detectable.
func (r *MatchRepository) Insert(ctx context.Context, rec domain.MatchRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO match_records (`+matchColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.MatchID, rec.Player1ID, rec.Player2ID, rec.WinnerID,
		rec.P1RatingBefore, rec.P1RatingAfter, rec.P1RatingDelta,
		rec.P2RatingBefore, rec.P2RatingAfter, rec.P2RatingDelta,
		rec.P1Score, rec.P1Wickets, rec.P1Overs,
		rec.P2Score, rec.P2Wickets, rec.P2Overs, rec.PlayedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateMatch
	}
	if err != nil {
		return fmt.Errorf("failed to insert match record %s: %w", rec.MatchID, err)
	}
	return nil
}

// GetByID returns the stored record, or nil when the match id is unknown.
func (r *MatchRepository) GetByID(ctx context.Context, matchID string) (*domain.MatchRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM match_records WHERE match_id = ?`, matchID)
	rec, err := scanMatchRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match record %s: %w", matchID, err)
	}
	return rec, nil
}

// ListRecent returns a player's most recent matches.
func (r *MatchRepository) ListRecent(ctx context.Context, playerID int64, limit int) ([]domain.MatchRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM match_records
		 WHERE player1_id = ? OR player2_id = ?
		 ORDER BY played_at DESC
		 LIMIT ?`, playerID, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for %d: %w", playerID, err)
	}
	defer rows.Close()

	var records []domain.MatchRecord
	for rows.Next() {
		rec, err := scanMatchRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanMatchRecord(row rowScanner) (*domain.MatchRecord, error) {
	var rec domain.MatchRecord
	var winner sql.NullInt64
	err := row.Scan(
		&rec.MatchID, &rec.Player1ID, &rec.Player2ID, &winner,
		&rec.P1RatingBefore, &rec.P1RatingAfter, &rec.P1RatingDelta,
		&rec.P2RatingBefore, &rec.P2RatingAfter, &rec.P2RatingDelta,
		&rec.P1Score, &rec.P1Wickets, &rec.P1Overs,
		&rec.P2Score, &rec.P2Wickets, &rec.P2Overs, &rec.PlayedAt,
	)
	if err != nil {
		return nil, err
	}
	if winner.Valid {
		rec.WinnerID = &winner.Int64
	}
	return &rec, nil
}
