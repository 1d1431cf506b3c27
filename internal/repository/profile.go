package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Krutik08064/CricSaga-Bot/internal/constants"
	"github.com/Krutik08064/CricSaga-Bot/internal/database"
	"github.com/Krutik08064/CricSaga-Bot/internal/domain"
	"github.com/Krutik08064/CricSaga-Bot/internal/rating"
	"github.com/rs/zerolog"
)

const profileColumns = `player_id, rating, rank_tier, total_matches, wins, losses,
	current_streak, streak_type, highest_rating, trust_score,
	rating_suspended, account_flagged, total_ranked_matches, created_at, updated_at`

type ProfileRepository struct {
	db     database.DBTX
	sqlDB  *sql.DB
	logger zerolog.Logger
}

func NewProfileRepository(sqlDB *sql.DB, logger zerolog.Logger) *ProfileRepository {
	return &ProfileRepository{db: sqlDB, sqlDB: sqlDB, logger: logger}
}

// WithTx rebinds the repository to a transaction.
func (r *ProfileRepository) WithTx(tx *sql.Tx) *ProfileRepository {
	return &ProfileRepository{db: tx, sqlDB: r.sqlDB, logger: r.logger}
}

func (r *ProfileRepository) Get(ctx context.Context, playerID int64) (*domain.PlayerCareerProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM player_profiles WHERE player_id = ?`, playerID)

	profile, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %d: %w", playerID, err)
	}
	return profile, nil
}

// GetOrCreate returns the profile, creating it with default rating and trust
// score on first ranked activity.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, playerID int64) (*domain.PlayerCareerProfile, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO player_profiles (player_id, rating, rank_tier, highest_rating, trust_score, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (player_id) DO NOTHING`,
		playerID, constants.DefaultRating, rating.TierForRating(constants.DefaultRating),
		constants.DefaultRating, constants.DefaultTrustScore, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile %d: %w", playerID, err)
	}
	return r.Get(ctx, playerID)
}

// ProfileMatchUpdate carries the post-match state applied to one profile.
// Guard fields hold the values read at the start of the transaction; the
// write only lands if the row is still in that state.
type ProfileMatchUpdate struct {
	PlayerID           int64
	Rating             int
	RankTier           string
	TotalMatches       int
	Wins               int
	Losses             int
	CurrentStreak      int
	StreakType         domain.StreakType
	HighestRating      int
	TrustScore         float64
	AccountFlagged     bool
	TotalRankedMatches int

	// GuardRankedMatches is the value read at transaction start. Every
	// commit increments total_ranked_matches (decided or not), so any
	// concurrent commit since the read makes the guard miss.
	GuardRankedMatches int
	GuardSuspended     bool
}

// ApplyMatchUpdate performs the conditional read-modify-write for one side
// of a completed match. Returns false when the guard no longer matches
// (concurrent commit or suspension toggle); the caller must roll back.
func (r *ProfileRepository) ApplyMatchUpdate(ctx context.Context, u ProfileMatchUpdate) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE player_profiles
		 SET rating = ?, rank_tier = ?, total_matches = ?, wins = ?, losses = ?,
		     current_streak = ?, streak_type = ?, highest_rating = ?, trust_score = ?,
		     account_flagged = ?, total_ranked_matches = ?, updated_at = ?
		 WHERE player_id = ? AND total_ranked_matches = ? AND rating_suspended = ?`,
		u.Rating, u.RankTier, u.TotalMatches, u.Wins, u.Losses,
		u.CurrentStreak, string(u.StreakType), u.HighestRating, u.TrustScore,
		u.AccountFlagged, u.TotalRankedMatches, time.Now().UTC(),
		u.PlayerID, u.GuardRankedMatches, u.GuardSuspended)
	if err != nil {
		return false, fmt.Errorf("failed to update profile %d: %w", u.PlayerID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected for profile %d: %w", u.PlayerID, err)
	}
	return affected == 1, nil
}

// SetSuspended toggles the administrative rating-suspension flag.
func (r *ProfileRepository) SetSuspended(ctx context.Context, playerID int64, suspended bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE player_profiles SET rating_suspended = ?, updated_at = ? WHERE player_id = ?`,
		suspended, time.Now().UTC(), playerID)
	if err != nil {
		return fmt.Errorf("failed to set suspension for %d: %w", playerID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// Reset restores a profile to the first-activity defaults. Administrative
// operation; profiles are never deleted.
func (r *ProfileRepository) Reset(ctx context.Context, playerID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE player_profiles
		 SET rating = ?, rank_tier = ?, total_matches = 0, wins = 0, losses = 0,
		     current_streak = 0, streak_type = 'none', highest_rating = ?,
		     trust_score = ?, rating_suspended = 0, account_flagged = 0,
		     total_ranked_matches = 0, updated_at = ?
		 WHERE player_id = ?`,
		constants.DefaultRating, rating.TierForRating(constants.DefaultRating),
		constants.DefaultRating, constants.DefaultTrustScore, time.Now().UTC(), playerID)
	if err != nil {
		return fmt.Errorf("failed to reset profile %d: %w", playerID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// TopByRating returns profiles ordered by rating descending.
func (r *ProfileRepository) TopByRating(ctx context.Context, limit int) ([]domain.PlayerCareerProfile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM player_profiles ORDER BY rating DESC, player_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var profiles []domain.PlayerCareerProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// GetMany loads a set of profiles in one query, keyed by player id.
func (r *ProfileRepository) GetMany(ctx context.Context, playerIDs []int64) (map[int64]domain.PlayerCareerProfile, error) {
	result := make(map[int64]domain.PlayerCareerProfile, len(playerIDs))
	if len(playerIDs) == 0 {
		return result, nil
	}

	query := `SELECT ` + profileColumns + ` FROM player_profiles WHERE player_id IN (?` +
		repeatPlaceholder(len(playerIDs)-1) + `)`
	args := make([]interface{}, len(playerIDs))
	for i, id := range playerIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		result[p.PlayerID] = *p
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*domain.PlayerCareerProfile, error) {
	var p domain.PlayerCareerProfile
	var streakType string
	err := row.Scan(
		&p.PlayerID, &p.Rating, &p.RankTier, &p.TotalMatches, &p.Wins, &p.Losses,
		&p.CurrentStreak, &streakType, &p.HighestRating, &p.TrustScore,
		&p.RatingSuspended, &p.AccountFlagged, &p.TotalRankedMatches,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.StreakType = domain.StreakType(streakType)
	return &p, nil
}

func repeatPlaceholder(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}
