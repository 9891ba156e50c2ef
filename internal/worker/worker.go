// Package worker drains the XP retry queue: check-ins whose award could not be
// written inline are replayed here until the ledger accepts them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/techsoc/backend/internal/apperror"
	"github.com/techsoc/backend/internal/models"
	"github.com/techsoc/backend/internal/xp"
	"github.com/techsoc/backend/pkg/queue"
)

// JobQueue is the queue surface the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context, wait time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
	Requeue(ctx context.Context, job *queue.Job) error
	DeadLetter(ctx context.Context, job *queue.Job) error
}

// EventStore loads the event an award is computed from.
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Awarder persists an XP award.
type Awarder interface {
	Award(ctx context.Context, userID, eventID uuid.UUID, amount int) (*models.XPAward, error)
}

// settleTimeout bounds the queue write that settles a dequeued job. It runs
// detached from the worker context so a job popped before shutdown is not lost.
const settleTimeout = 5 * time.Second

// ErrPermanent marks a job that retrying cannot fix.
var ErrPermanent = errors.New("permanent job failure")

// XPAwardProcessor replays deferred XP awards.
type XPAwardProcessor struct {
	queue   JobQueue
	events  EventStore
	awarder Awarder
	backoff time.Duration
	wait    time.Duration
	logger  *zap.Logger
}

// NewXPAwardProcessor creates the XP retry processor.
func NewXPAwardProcessor(q JobQueue, events EventStore, awarder Awarder, backoff, wait time.Duration, logger *zap.Logger) *XPAwardProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if wait < time.Second {
		wait = time.Second
	}
	return &XPAwardProcessor{queue: q, events: events, awarder: awarder, backoff: backoff, wait: wait, logger: logger}
}

// Process executes one xp_award job. An award that already exists counts as
// success, so replays are harmless.
func (p *XPAwardProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.XPAward()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}

	ev, err := p.events.GetByID(ctx, payload.EventID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		return fmt.Errorf("load event: %w", err)
	}

	amount := xp.Compute(*ev)
	if _, err := p.awarder.Award(ctx, payload.UserID, payload.EventID, amount); err != nil {
		switch {
		case errors.Is(err, xp.ErrAlreadyAwarded):
			p.logger.Info("xp already awarded, dropping job",
				zap.String("job_id", job.ID), zap.String("registration_id", payload.RegistrationID.String()))
			return nil
		case errors.Is(err, apperror.ErrNotFound), errors.Is(err, apperror.ErrValidation):
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		return fmt.Errorf("award: %w", err)
	}

	p.logger.Info("deferred xp awarded",
		zap.String("job_id", job.ID),
		zap.String("registration_id", payload.RegistrationID.String()),
		zap.Int("xp", amount),
		zap.Int("attempt", job.Attempt))
	return nil
}

// Run dequeues and processes jobs until ctx is done.
func (p *XPAwardProcessor) Run(ctx context.Context) {
	p.logger.Info("xp retry worker started")
	for {
		if ctx.Err() != nil {
			p.logger.Info("xp retry worker stopping")
			return
		}

		job, err := p.queue.Dequeue(ctx, p.wait)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("dequeue error", zap.Error(err))
				p.sleep(ctx)
			}
			continue
		}
		if job == nil {
			continue
		}
		p.handle(ctx, job)
	}
}

func (p *XPAwardProcessor) handle(ctx context.Context, job *queue.Job) {
	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := p.Process(ctx, job)
	if err == nil {
		return
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	switch {
	case errors.Is(err, ErrPermanent):
		p.logger.Error("job failed permanently", zap.String("job_id", job.ID), zap.Error(err))
		if dlErr := p.queue.DeadLetter(sctx, job); dlErr != nil {
			p.logger.Error("dead-letter failed", zap.String("job_id", job.ID), zap.Error(dlErr))
		}
	case ctx.Err() != nil:
		p.logger.Info("job interrupted by shutdown", zap.String("job_id", job.ID), zap.Error(err))
		if rqErr := p.queue.Requeue(sctx, job); rqErr != nil {
			p.logger.Error("requeue failed", zap.String("job_id", job.ID), zap.Error(rqErr))
		}
	default:
		p.logger.Warn("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		if reErr := p.queue.Retry(sctx, job); reErr != nil {
			p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
		}
		p.sleep(ctx)
	}
}

func (p *XPAwardProcessor) sleep(ctx context.Context) {
	if p.backoff <= 0 {
		return
	}
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
