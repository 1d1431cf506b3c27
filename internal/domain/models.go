package domain

import (
	"time"
)

type StreakType string

const (
	StreakNone StreakType = "none"
	StreakWin  StreakType = "win"
	StreakLoss StreakType = "loss"
)

// PlayerCareerProfile is the durable per-player ranked record. It is created
// on first ranked activity and mutated only inside stats transactions.
type PlayerCareerProfile struct {
	PlayerID           int64
	Rating             int
	RankTier           string
	TotalMatches       int
	Wins               int
	Losses             int
	CurrentStreak      int // positive = win streak, negative = loss streak
	StreakType         StreakType
	HighestRating      int
	TrustScore         float64 // bounded [0, 100]
	RatingSuspended    bool
	AccountFlagged     bool
	TotalRankedMatches int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// InPlacements reports whether the player is still inside placement matches.
func (p *PlayerCareerProfile) InPlacements(placementCount int) bool {
	return p.TotalRankedMatches < placementCount
}

type QueueEntry struct {
	PlayerID int64
	Rating   int // snapshot at join time
	RankTier string
	JoinedAt time.Time
}

// PairedMatch is the output of a successful queue pairing or an accepted
// challenge: two players and a freshly minted match id handed to the
// external simulation.
type PairedMatch struct {
	MatchID  string
	Player1  QueueEntry
	Player2  QueueEntry
	PairedAt time.Time
}

type ChallengeStatus string

const (
	ChallengePending  ChallengeStatus = "pending"
	ChallengeAccepted ChallengeStatus = "accepted"
	ChallengeDeclined ChallengeStatus = "declined"
	ChallengeExpired  ChallengeStatus = "expired"
)

type Challenge struct {
	ID               string // nanoid
	ChallengerID     int64
	TargetID         int64
	ChallengerRating int
	TargetRating     int
	ChallengerTier   string
	TargetTier       string
	Status           ChallengeStatus
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// Cooldown blocks new challenges for an ordered (challenger, target) pair.
// Written on every terminal challenge transition, regardless of outcome.
type Cooldown struct {
	ChallengerID int64
	TargetID     int64
	ExpiresAt    time.Time
}

// MatchPattern aggregates head-to-head history for one directed
// (player, opponent) pair. Two rows exist per match, one per direction.
type MatchPattern struct {
	PlayerID      int64
	OpponentID    int64
	TotalMatches  int
	Wins          int
	Losses        int
	RecentCount   int // matches inside the rolling 24h window
	WindowResetAt time.Time
	IsFlagged     bool
	FlagReason    string
	UpdatedAt     time.Time
}

// MatchRecord is the immutable append-only row written once per completed
// match. MatchID is the idempotence key for CompleteMatch.
type MatchRecord struct {
	MatchID        string // uuid
	Player1ID      int64
	Player2ID      int64
	WinnerID       *int64 // nil for no-result
	P1RatingBefore int
	P1RatingAfter  int
	P1RatingDelta  int
	P2RatingBefore int
	P2RatingAfter  int
	P2RatingDelta  int
	P1Score        int
	P1Wickets      int
	P1Overs        float64
	P2Score        int
	P2Wickets      int
	P2Overs        float64
	PlayedAt       time.Time
}

type ReviewStatus string

const (
	ReviewUnreviewed ReviewStatus = "unreviewed"
	ReviewReviewed   ReviewStatus = "reviewed"
	ReviewCleared    ReviewStatus = "cleared"
)

const (
	ActivityRepeatOpponent = "repeat_opponent"
)

// SuspiciousActivity is an append-only audit entry raised by the anti-cheat
// monitor. Review fields are mutated only by the administrative review flow.
type SuspiciousActivity struct {
	ID           string // nanoid
	PlayerID     int64
	ActivityType string
	OpponentID   int64
	Reason       string
	TrustImpact  float64
	ReviewStatus ReviewStatus
	ReviewedBy   *int64
	ReviewAction string
	CreatedAt    time.Time
}

// MatchResult is what the external simulation reports back once a match
// finishes. WinnerID nil means no-result.
type MatchResult struct {
	MatchID   string
	Player1ID int64
	Player2ID int64
	WinnerID  *int64
	P1Score   int
	P1Wickets int
	P1Overs   float64
	P2Score   int
	P2Wickets int
	P2Overs   float64
	PlayedAt  time.Time
}

// MatchOutcome is returned from a successful CompleteMatch so the caller can
// verify the post-update state of both profiles.
type MatchOutcome struct {
	P1After   *PlayerCareerProfile
	P2After   *PlayerCareerProfile
	Record    *MatchRecord
	Duplicate bool // true when the match id had already been committed
}

// LeaderboardEntry is one row of the rating leaderboard.
type LeaderboardEntry struct {
	Rank     int
	PlayerID int64
	Rating   int
	RankTier string
	Wins     int
	Losses   int
}
