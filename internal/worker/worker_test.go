package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/techsoc/backend/internal/apperror"
	"github.com/techsoc/backend/internal/models"
	"github.com/techsoc/backend/internal/xp"
	"github.com/techsoc/backend/pkg/queue"
)

type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

type MockAwarder struct {
	mock.Mock
}

func (m *MockAwarder) Award(ctx context.Context, userID, eventID uuid.UUID, amount int) (*models.XPAward, error) {
	args := m.Called(ctx, userID, eventID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.XPAward), args.Error(1)
}

func newTestQueue(t *testing.T) (*queue.Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return queue.NewQueue(client, 3, zap.NewNop()), mr
}

func workshop() *models.Event {
	start := time.Date(2026, 4, 2, 14, 0, 0, 0, time.UTC)
	return &models.Event{
		ID:              uuid.New(),
		Title:           "Intro to Go",
		EventType:       "workshop",
		DifficultyLevel: "beginner",
		StartTime:       start,
		EndTime:         start.Add(2 * time.Hour),
	}
}

func enqueue(t *testing.T, q *queue.Queue, payload queue.XPAwardPayload) *queue.Job {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, q.EnqueueXPAward(ctx, payload))
	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

func TestProcess(t *testing.T) {
	ev := workshop()
	userID := uuid.New()
	payload := queue.XPAwardPayload{RegistrationID: uuid.New(), UserID: userID, EventID: ev.ID}

	tests := []struct {
		name      string
		eventErr  error
		awardErr  error
		wantErr   bool
		permanent bool
	}{
		{name: "awarded"},
		{name: "already awarded", awardErr: xp.ErrAlreadyAwarded},
		{name: "transient award failure", awardErr: apperror.Storage("insert xp award", errors.New("timeout")), wantErr: true},
		{name: "unknown user", awardErr: apperror.NotFound("user", userID.String()), wantErr: true, permanent: true},
		{name: "event gone", eventErr: apperror.NotFound("event", ev.ID.String()), wantErr: true, permanent: true},
		{name: "event load failure", eventErr: apperror.Storage("get event", errors.New("conn reset")), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := newTestQueue(t)
			events, awarder := new(MockEvents), new(MockAwarder)
			if tt.eventErr != nil {
				events.On("GetByID", mock.Anything, ev.ID).Return(nil, tt.eventErr)
			} else {
				events.On("GetByID", mock.Anything, ev.ID).Return(ev, nil)
				if tt.awardErr != nil {
					awarder.On("Award", mock.Anything, userID, ev.ID, 100).Return(nil, tt.awardErr)
				} else {
					awarder.On("Award", mock.Anything, userID, ev.ID, 100).Return(&models.XPAward{XPAmount: 100}, nil)
				}
			}

			p := NewXPAwardProcessor(q, events, awarder, 0, time.Second, zap.NewNop())
			err := p.Process(context.Background(), enqueue(t, q, payload))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.permanent, errors.Is(err, ErrPermanent))
		})
	}
}

func TestProcess_BadPayloadIsPermanent(t *testing.T) {
	p := NewXPAwardProcessor(nil, new(MockEvents), new(MockAwarder), 0, time.Second, nil)
	err := p.Process(context.Background(), &queue.Job{ID: "j", Type: "mystery"})
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestRun_RetriesUntilAwarded(t *testing.T) {
	q, mr := newTestQueue(t)
	ev := workshop()
	userID := uuid.New()

	events, awarder := new(MockEvents), new(MockAwarder)
	events.On("GetByID", mock.Anything, ev.ID).Return(ev, nil)
	awarder.On("Award", mock.Anything, userID, ev.ID, 100).
		Return(nil, apperror.Storage("insert xp award", errors.New("deadlock"))).Once()
	awarded := make(chan struct{})
	awarder.On("Award", mock.Anything, userID, ev.ID, 100).
		Return(&models.XPAward{XPAmount: 100}, nil).Once().
		Run(func(mock.Arguments) { close(awarded) })

	require.NoError(t, q.EnqueueXPAward(context.Background(),
		queue.XPAwardPayload{RegistrationID: uuid.New(), UserID: userID, EventID: ev.ID}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewXPAwardProcessor(q, events, awarder, 0, time.Second, zap.NewNop()).Run(ctx)
		close(done)
	}()

	select {
	case <-awarded:
	case <-time.After(5 * time.Second):
		t.Fatal("award was not retried")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	assert.False(t, mr.Exists(queue.QueueDLQ))
	awarder.AssertExpectations(t)
}

func TestRun_PermanentFailureGoesToDLQ(t *testing.T) {
	q, mr := newTestQueue(t)
	eventID := uuid.New()

	events := new(MockEvents)
	events.On("GetByID", mock.Anything, eventID).Return(nil, apperror.NotFound("event", eventID.String()))

	require.NoError(t, q.EnqueueXPAward(context.Background(),
		queue.XPAwardPayload{RegistrationID: uuid.New(), UserID: uuid.New(), EventID: eventID}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewXPAwardProcessor(q, events, new(MockAwarder), 0, time.Second, zap.NewNop()).Run(ctx)

	require.Eventually(t, func() bool {
		dlq, err := mr.List(queue.QueueDLQ)
		return err == nil && len(dlq) == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRun_ShutdownMidAwardKeepsJob(t *testing.T) {
	q, mr := newTestQueue(t)
	ev := workshop()
	userID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, awarder := new(MockEvents), new(MockAwarder)
	events.On("GetByID", mock.Anything, ev.ID).Return(ev, nil)
	awarder.On("Award", mock.Anything, userID, ev.ID, 100).
		Return(nil, context.Canceled).Once().
		Run(func(mock.Arguments) { cancel() })

	payload := queue.XPAwardPayload{RegistrationID: uuid.New(), UserID: userID, EventID: ev.ID}
	require.NoError(t, q.EnqueueXPAward(context.Background(), payload))

	done := make(chan struct{})
	go func() {
		NewXPAwardProcessor(q, events, awarder, 0, time.Second, zap.NewNop()).Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	assert.False(t, mr.Exists(queue.QueueDLQ))
	job, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Zero(t, job.Attempt)
	got, err := job.XPAward()
	require.NoError(t, err)
	assert.Equal(t, payload.RegistrationID, got.RegistrationID)
	awarder.AssertExpectations(t)
}
