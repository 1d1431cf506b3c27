package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Krutik08064/CricSaga-Bot/internal/database"
	"github.com/Krutik08064/CricSaga-Bot/internal/domain"
	"github.com/rs/zerolog"
)

// QueueRepository is the injected store behind the matchmaking queue.
// Multiple queues (e.g. per game mode) can each own their own repository.
type QueueRepository struct {
	db     database.DBTX
	sqlDB  *sql.DB
	logger zerolog.Logger
}

func NewQueueRepository(sqlDB *sql.DB, logger zerolog.Logger) *QueueRepository {
	return &QueueRepository{db: sqlDB, sqlDB: sqlDB, logger: logger}
}

// Upsert inserts or refreshes the player's queue entry. Re-joining replaces
// the snapshot and join time, never duplicates.
func (r *QueueRepository) Upsert(ctx context.Context, entry domain.QueueEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO queue_entries (player_id, rating, rank_tier, joined_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (player_id) DO UPDATE
		 SET rating = excluded.rating, rank_tier = excluded.rank_tier, joined_at = excluded.joined_at`,
		entry.PlayerID, entry.Rating, entry.RankTier, entry.JoinedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert queue entry for %d: %w", entry.PlayerID, err)
	}
	return nil
}

// Remove deletes the player's entry. Returns false when no entry existed,
// which is a valid outcome, not an error.
func (r *QueueRepository) Remove(ctx context.Context, playerID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM queue_entries WHERE player_id = ?`, playerID)
	if err != nil {
		return false, fmt.Errorf("failed to remove queue entry for %d: %w", playerID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected for queue entry %d: %w", playerID, err)
	}
	return affected == 1, nil
}

func (r *QueueRepository) Get(ctx context.Context, playerID int64) (*domain.QueueEntry, error) {
	var e domain.QueueEntry
	err := r.db.QueryRowContext(ctx,
		`SELECT player_id, rating, rank_tier, joined_at FROM queue_entries WHERE player_id = ?`,
		playerID).Scan(&e.PlayerID, &e.Rating, &e.RankTier, &e.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry for %d: %w", playerID, err)
	}
	return &e, nil
}

// ListWaiting returns all entries ordered by join time, longest wait first.
func (r *QueueRepository) ListWaiting(ctx context.Context) ([]domain.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT player_id, rating, rank_tier, joined_at FROM queue_entries ORDER BY joined_at ASC, player_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.QueueEntry
	for rows.Next() {
		var e domain.QueueEntry
		if err := rows.Scan(&e.PlayerID, &e.Rating, &e.RankTier, &e.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *QueueRepository) Size(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}
	return n, nil
}

// ClaimPair removes both entries as a single atomic step. Returns false,
// rolling back, when either entry was already claimed or removed; the
// caller lost the race and should just move on.
func (r *QueueRepository) ClaimPair(ctx context.Context, playerA, playerB int64) (bool, error) {
	tx, err := r.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM queue_entries WHERE player_id IN (?, ?)`, playerA, playerB)
	if err != nil {
		return false, fmt.Errorf("failed to claim queue pair (%d, %d): %w", playerA, playerB, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected for claim (%d, %d): %w", playerA, playerB, err)
	}
	if affected != 2 {
		r.logger.Debug().
			Int64("player_a", playerA).
			Int64("player_b", playerB).
			Int64("affected", affected).
			Msg("queue pair claim lost race, entry already removed")
		return false, nil
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit claim (%d, %d): %w", playerA, playerB, err)
	}
	return true, nil
}
