package models

import (
	"time"

	"github.com/google/uuid"
)

// XPAward is one immutable ledger entry.
type XPAward struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	EventID    uuid.UUID `json:"event_id"`
	XPAmount   int       `json:"xp_amount"`
	AwardedAt  time.Time `json:"awarded_at"`
	EventTitle string    `json:"event_title,omitempty"`
}

// LeaderboardEntry is one ranked row of the XP leaderboard.
type LeaderboardEntry struct {
	Rank     int       `json:"rank"`
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name"`
	XPPoints int       `json:"xp_points"`
}
