package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Krutik08064/CricSaga-Bot/internal/database"
	"github.com/Krutik08064/CricSaga-Bot/internal/domain"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const challengeColumns = `id, challenger_id, target_id, challenger_rating, target_rating,
	challenger_tier, target_tier, status, created_at, expires_at`

type ChallengeRepository struct {
	db     database.DBTX
	sqlDB  *sql.DB
	logger zerolog.Logger
}

func NewChallengeRepository(sqlDB *sql.DB, logger zerolog.Logger) *ChallengeRepository {
	return &ChallengeRepository{db: sqlDB, sqlDB: sqlDB, logger: logger}
}

// Insert stores a new pending challenge. A partial unique index on pending
// (challenger, target) pairs turns duplicate pending challenges into
// ErrAlreadyPending.
func (r *ChallengeRepository) Insert(ctx context.Context, ch domain.Challenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO challenges (`+challengeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ch.ID, ch.ChallengerID, ch.TargetID, ch.ChallengerRating, ch.TargetRating,
		ch.ChallengerTier, ch.TargetTier, string(ch.Status), ch.CreatedAt, ch.ExpiresAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyPending
	}
	if err != nil {
		return fmt.Errorf("failed to insert challenge %s: %w", ch.ID, err)
	}
	return nil
}

func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (*domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id)
	ch, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge %s: %w", id, err)
	}
	return ch, nil
}

// ResolvePending moves a pending challenge to a terminal status and writes
// the pair cooldown as one atomic step. The update is conditional on the
// challenge still being pending; a concurrent resolution wins and this call
// reports false.
func (r *ChallengeRepository) ResolvePending(ctx context.Context, id string, to domain.ChallengeStatus, cooldownUntil time.Time) (*domain.Challenge, bool, error) {
	tx, err := r.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin resolve transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id)
	ch, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, false, domain.ErrChallengeNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load challenge %s: %w", id, err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE challenges SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(domain.ChallengePending))
	if err != nil {
		return nil, false, fmt.Errorf("failed to transition challenge %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read rows affected for challenge %s: %w", id, err)
	}
	if affected != 1 {
		// Already resolved by a concurrent accept/decline/sweep.
		return ch, false, nil
	}

	// Cooldown applies on every terminal transition, regardless of outcome.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO challenge_cooldowns (challenger_id, target_id, expires_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (challenger_id, target_id) DO UPDATE SET expires_at = excluded.expires_at`,
		ch.ChallengerID, ch.TargetID, cooldownUntil); err != nil {
		return nil, false, fmt.Errorf("failed to write cooldown for challenge %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit resolution of challenge %s: %w", id, err)
	}

	ch.Status = to
	return ch, true, nil
}

// ListExpiredPending returns pending challenges whose expiry has passed.
func (r *ChallengeRepository) ListExpiredPending(ctx context.Context, now time.Time) ([]domain.Challenge, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE status = ? AND expires_at <= ?`,
		string(domain.ChallengePending), now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired challenges: %w", err)
	}
	defer rows.Close()

	var challenges []domain.Challenge
	for rows.Next() {
		ch, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, *ch)
	}
	return challenges, rows.Err()
}

// OnCooldown reports whether the ordered pair still has an unexpired
// cooldown.
func (r *ChallengeRepository) OnCooldown(ctx context.Context, challengerID, targetID int64, now time.Time) (bool, error) {
	var expiresAt time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT expires_at FROM challenge_cooldowns WHERE challenger_id = ? AND target_id = ?`,
		challengerID, targetID).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check cooldown (%d, %d): %w", challengerID, targetID, err)
	}
	return now.Before(expiresAt), nil
}

func scanChallenge(row rowScanner) (*domain.Challenge, error) {
	var ch domain.Challenge
	var status string
	err := row.Scan(
		&ch.ID, &ch.ChallengerID, &ch.TargetID, &ch.ChallengerRating, &ch.TargetRating,
		&ch.ChallengerTier, &ch.TargetTier, &status, &ch.CreatedAt, &ch.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	ch.Status = domain.ChallengeStatus(status)
	return &ch, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
