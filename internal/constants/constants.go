package constants

import "time"

const (
	DefaultRating     = 1000
	DefaultTrustScore = 100.0
	PlacementMatches  = 10
)

const (
	// Pairing window starts at ±BaseRatingWindow and widens by
	// WindowWidenStep for every WindowWidenInterval waited. Past
	// UnlimitedWindowAfter the window is unbounded.
	BaseRatingWindow     = 50
	WindowWidenStep      = 50
	WindowWidenInterval  = 30 * time.Second
	UnlimitedWindowAfter = 5 * time.Minute

	QueueTickInterval = 1 * time.Second
)

const (
	ChallengeTTL           = 60 * time.Second
	ChallengeCooldown      = 2 * time.Minute
	ChallengeSweepInterval = 5 * time.Second
)

const (
	// More than RepeatOpponentThreshold matches against the same opponent
	// inside RepeatOpponentWindow raises a win-trading flag.
	RepeatOpponentThreshold = 4
	RepeatOpponentWindow    = 24 * time.Hour
	RepeatFlagTrustPenalty  = 10.0
)

const (
	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
	ShutdownTimeout = 5 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	CommitRetryAttempts = 3
	CommitRetryBackoff  = 50 * time.Millisecond
)

const (
	AuditSinkTimeout = 10 * time.Second
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)
