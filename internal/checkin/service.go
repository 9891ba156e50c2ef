// Package checkin implements QR ticket scanning: resolve the ticket, record
// attendance once, and award XP for the first check-in.
package checkin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/techsoc/backend/internal/apperror"
	"github.com/techsoc/backend/internal/xp"
	"github.com/techsoc/backend/pkg/queue"
)

// Outcome is the terminal state of a scan.
type Outcome string

const (
	OutcomeCheckedIn        Outcome = "checked_in"
	OutcomeAlreadyCheckedIn Outcome = "already_checked_in"
)

// NotifyEvent is the realtime event name for scan outcomes.
const NotifyEvent = "checkin"

// Once attendance is written the award runs detached from the caller, so a
// scanner that hangs up cannot strand it. These bound that detached work.
const (
	awardTimeout   = 10 * time.Second
	enqueueTimeout = 5 * time.Second
)

// ScanInput is the raw scanner submission.
type ScanInput struct {
	Token   string
	UserID  string
	EventID string
}

// Result describes a completed scan. XPPending is set when attendance was
// recorded but the award has been handed to the retry worker.
type Result struct {
	Outcome        Outcome
	RegistrationID uuid.UUID
	UserID         uuid.UUID
	EventID        uuid.UUID
	UserName       string
	XPAwarded      int
	XPMessage      string
	XPPending      bool
}

// Notification is broadcast to operators watching an event.
type Notification struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	UserID         uuid.UUID `json:"user_id"`
	UserName       string    `json:"user_name"`
	Outcome        Outcome   `json:"outcome"`
	XPAwarded      int       `json:"xp_awarded"`
	XPPending      bool      `json:"xp_pending,omitempty"`
	At             time.Time `json:"at"`
}

// Service runs the check-in state machine.
type Service struct {
	registrations RegistrationStore
	events        EventStore
	awarder       Awarder
	retries       RetryQueue
	notifier      Notifier
	logger        *zap.Logger
}

// NewService creates a check-in service. retries and notifier may be nil.
func NewService(registrations RegistrationStore, events EventStore, awarder Awarder, retries RetryQueue, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registrations: registrations,
		events:        events,
		awarder:       awarder,
		retries:       retries,
		notifier:      notifier,
		logger:        logger,
	}
}

// Scan checks in the attendee identified by in. Errors are returned only while
// nothing has been written; once attendance is durable the result always
// reports success, with XPPending set if the award has to be retried.
func (s *Service) Scan(ctx context.Context, in ScanInput) (*Result, error) {
	token, userID, eventID, err := validate(in)
	if err != nil {
		return nil, err
	}

	reg, err := s.registrations.ResolveRegistration(ctx, token, userID, eventID)
	if err != nil {
		return nil, err
	}

	first, err := s.registrations.MarkAttended(ctx, reg.ID)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RegistrationID: reg.ID,
		UserID:         reg.UserID,
		EventID:        reg.EventID,
		UserName:       reg.AttendeeDisplayName(),
	}
	if !first {
		res.Outcome = OutcomeAlreadyCheckedIn
		s.notify(res)
		return res, nil
	}
	res.Outcome = OutcomeCheckedIn

	post, cancel := context.WithTimeout(context.WithoutCancel(ctx), awardTimeout)
	defer cancel()

	ev, err := s.events.GetByID(post, reg.EventID)
	if err != nil {
		s.deferAward(ctx, res, "load event: "+err.Error())
		s.notify(res)
		return res, nil
	}

	amount := xp.Compute(*ev)
	if _, err := s.awarder.Award(post, reg.UserID, reg.EventID, amount); err != nil {
		if errors.Is(err, xp.ErrAlreadyAwarded) {
			res.XPMessage = "XP already awarded for this event"
			s.notify(res)
			return res, nil
		}
		s.deferAward(ctx, res, "award: "+err.Error())
		s.notify(res)
		return res, nil
	}

	res.XPAwarded = amount
	res.XPMessage = xp.Describe(*ev, amount)
	s.logger.Info("check-in recorded",
		zap.String("registration_id", reg.ID.String()),
		zap.String("event_id", reg.EventID.String()),
		zap.Int("xp", amount))
	s.notify(res)
	return res, nil
}

func (s *Service) deferAward(ctx context.Context, res *Result, reason string) {
	res.XPPending = true
	res.XPAwarded = 0
	res.XPMessage = "Check-in saved. XP will be awarded shortly."

	fields := []zap.Field{
		zap.String("registration_id", res.RegistrationID.String()),
		zap.String("event_id", res.EventID.String()),
		zap.String("reason", reason),
	}
	if s.retries == nil {
		s.logger.Error("xp award failed and no retry queue configured", fields...)
		return
	}
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	err := s.retries.EnqueueXPAward(qctx, queue.XPAwardPayload{
		RegistrationID: res.RegistrationID,
		UserID:         res.UserID,
		EventID:        res.EventID,
		Reason:         reason,
	})
	if err != nil {
		s.logger.Error("xp award failed and could not be queued", append(fields, zap.Error(err))...)
		return
	}
	s.logger.Warn("xp award queued for retry", fields...)
}

func (s *Service) notify(res *Result) {
	if s.notifier == nil {
		return
	}
	s.notifier.BroadcastToEventAndPublish(res.EventID, NotifyEvent, Notification{
		RegistrationID: res.RegistrationID,
		UserID:         res.UserID,
		UserName:       res.UserName,
		Outcome:        res.Outcome,
		XPAwarded:      res.XPAwarded,
		XPPending:      res.XPPending,
		At:             time.Now().UTC(),
	})
}

func validate(in ScanInput) (token string, userID, eventID uuid.UUID, err error) {
	token = strings.TrimSpace(in.Token)
	if token == "" {
		return "", uuid.Nil, uuid.Nil, apperror.ValidationFailed("token", "token is required")
	}
	if strings.TrimSpace(in.UserID) == "" {
		return "", uuid.Nil, uuid.Nil, apperror.ValidationFailed("userId", "userId is required")
	}
	if strings.TrimSpace(in.EventID) == "" {
		return "", uuid.Nil, uuid.Nil, apperror.ValidationFailed("eventId", "eventId is required")
	}
	userID, err = uuid.Parse(strings.TrimSpace(in.UserID))
	if err != nil {
		return "", uuid.Nil, uuid.Nil, apperror.ValidationFailed("userId", "userId is not a valid id")
	}
	eventID, err = uuid.Parse(strings.TrimSpace(in.EventID))
	if err != nil {
		return "", uuid.Nil, uuid.Nil, apperror.ValidationFailed("eventId", "eventId is not a valid id")
	}
	return token, userID, eventID, nil
}
