package checkin

import (
	"context"

	"github.com/google/uuid"

	"github.com/techsoc/backend/internal/models"
	"github.com/techsoc/backend/pkg/queue"
)

// RegistrationStore resolves tickets and records attendance.
type RegistrationStore interface {
	ResolveRegistration(ctx context.Context, token string, userID, eventID uuid.UUID) (*models.Registration, error)
	MarkAttended(ctx context.Context, registrationID uuid.UUID) (bool, error)
}

// EventStore loads the event metadata XP is computed from.
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Awarder persists an XP award.
type Awarder interface {
	Award(ctx context.Context, userID, eventID uuid.UUID, amount int) (*models.XPAward, error)
}

// RetryQueue accepts XP awards that could not be completed inline.
type RetryQueue interface {
	EnqueueXPAward(ctx context.Context, payload queue.XPAwardPayload) error
}

// Notifier fans scan outcomes out to live operator dashboards.
type Notifier interface {
	BroadcastToEventAndPublish(eventID uuid.UUID, event string, payload interface{})
}
