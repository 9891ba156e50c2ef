package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus of a registration.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFree    PaymentStatus = "free"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFree:
		return true
	}
	return false
}

// Registration links one attendee to one event and carries the single-use
// check-in token.
type Registration struct {
	ID            uuid.UUID     `json:"id"`
	UserID        uuid.UUID     `json:"user_id"`
	EventID       uuid.UUID     `json:"event_id"`
	Token         string        `json:"token,omitempty"`
	Attended      bool          `json:"attended"`
	AttendedAt    *time.Time    `json:"attended_at,omitempty"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	// Populated by queries that join users.
	AttendeeName  string `json:"attendee_name,omitempty"`
	AttendeeEmail string `json:"attendee_email,omitempty"`
}

// AttendeeDisplayName returns the joined attendee name, falling back to email.
func (r *Registration) AttendeeDisplayName() string {
	if r.AttendeeName != "" {
		return r.AttendeeName
	}
	return r.AttendeeEmail
}
