package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/techsoc/backend/internal/apperror"
	"github.com/techsoc/backend/internal/models"
	"github.com/techsoc/backend/pkg/database"
)

const eventColumns = `id, title, description, location, start_time, end_time, event_type, difficulty_level,
	is_multi_day, capacity, status, is_paid, ticket_price_cents, created_by, created_at, updated_at`

// Repository handles event persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates an event repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, description, location, start_time, end_time, event_type, difficulty_level,
		is_multi_day, capacity, status, is_paid, ticket_price_cents, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, q, e.Title, e.Description, e.Location, e.StartTime, e.EndTime, e.EventType, e.DifficultyLevel,
		e.IsMultiDay, e.Capacity, string(e.Status), e.IsPaid, e.TicketPriceCents, e.CreatedBy).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return apperror.Storage("create event", err)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperror.NotFound("event", id.String())
		}
		return nil, apperror.Storage("get event", err)
	}
	return e, nil
}

// List returns events newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status *models.EventStatus) ([]models.Event, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status != nil {
		rows, err = r.db.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE status = $1 ORDER BY start_time DESC`, string(*status))
	} else {
		rows, err = r.db.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_time DESC`)
	}
	if err != nil {
		return nil, apperror.Storage("list events", err)
	}
	defer rows.Close()

	list := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, apperror.Storage("scan event", err)
		}
		list = append(list, *e)
	}
	return list, apperror.Storage("list events", rows.Err())
}

// UpdateStatus sets the publication status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE events SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	if err != nil {
		return apperror.Storage("update event status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("event", id.String())
	}
	return nil
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	var status string
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.StartTime, &e.EndTime, &e.EventType, &e.DifficultyLevel,
		&e.IsMultiDay, &e.Capacity, &status, &e.IsPaid, &e.TicketPriceCents, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Status = models.EventStatus(status)
	return &e, nil
}
