package domain

import "time"

type EventType string

const (
	EventQueueJoined    EventType = "queue_joined"
	EventMatchStarted   EventType = "match_started"
	EventMatchCompleted EventType = "match_completed"
)

// Event is the envelope mirrored best-effort to the external audit sink.
// Delivery failure never affects the core transaction.
type Event struct {
	Type       EventType   `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

type QueueJoinedEvent struct {
	PlayerID int64 `json:"player_id"`
	Rating   int   `json:"rating"`
}

type MatchStartedEvent struct {
	MatchID   string `json:"match_id"`
	Player1ID int64  `json:"player1_id"`
	Player2ID int64  `json:"player2_id"`
	P1Rating  int    `json:"p1_rating"`
	P2Rating  int    `json:"p2_rating"`
}

type MatchCompletedEvent struct {
	MatchID   string `json:"match_id"`
	WinnerID  *int64 `json:"winner_id,omitempty"`
	P1Delta   int    `json:"p1_delta"`
	P2Delta   int    `json:"p2_delta"`
	P1Score   int    `json:"p1_score"`
	P2Score   int    `json:"p2_score"`
	P1Wickets int    `json:"p1_wickets"`
	P2Wickets int    `json:"p2_wickets"`
}
