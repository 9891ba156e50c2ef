package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the publication state of an event.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusLive      EventStatus = "live"
	EventStatusCompleted EventStatus = "completed"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusDraft, EventStatusLive, EventStatusCompleted:
		return true
	}
	return false
}

// Event is a society event attendees register for and check into.
type Event struct {
	ID               uuid.UUID   `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Location         string      `json:"location"`
	StartTime        time.Time   `json:"start_time"`
	EndTime          time.Time   `json:"end_time"`
	EventType        string      `json:"event_type"`
	DifficultyLevel  string      `json:"difficulty_level"`
	IsMultiDay       bool        `json:"is_multi_day"`
	Capacity         int         `json:"capacity"` // 0 = unlimited
	Status           EventStatus `json:"status"`
	IsPaid           bool        `json:"is_paid"`
	TicketPriceCents int         `json:"ticket_price_cents"`
	CreatedBy        *uuid.UUID  `json:"created_by,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
