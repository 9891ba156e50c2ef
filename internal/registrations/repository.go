package registrations

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/techsoc/backend/internal/apperror"
	"github.com/techsoc/backend/internal/models"
	"github.com/techsoc/backend/pkg/database"
)

const registrationColumns = `r.id, r.user_id, r.event_id, r.token, r.attended, r.attended_at, r.payment_status,
	r.created_at, r.updated_at, u.name, u.email`

var (
	// ErrEventFull is returned when an event has reached its capacity.
	ErrEventFull = &apperror.AppError{Err: apperror.ErrConflict, Message: "event is at capacity"}
	// ErrAlreadyRegistered is returned for a second registration of the same attendee.
	ErrAlreadyRegistered = &apperror.AppError{Err: apperror.ErrConflict, Message: "already registered for this event"}
)

// Repository handles registration and check-in token persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a registrations repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a registration for reg.UserID on reg.EventID. The event row is
// locked while capacity is checked so concurrent registrations cannot overbook.
func (r *Repository) Create(ctx context.Context, reg *models.Registration) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return apperror.Storage("begin registration", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var capacity int
	if err = tx.QueryRow(ctx, `SELECT capacity FROM events WHERE id = $1 FOR UPDATE`, reg.EventID).Scan(&capacity); err != nil {
		if database.IsNoRows(err) {
			return apperror.NotFound("event", reg.EventID.String())
		}
		return apperror.Storage("lock event", err)
	}
	if capacity > 0 {
		var taken int
		if err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = $1`, reg.EventID).Scan(&taken); err != nil {
			return apperror.Storage("count registrations", err)
		}
		if taken >= capacity {
			return ErrEventFull
		}
	}

	const q = `INSERT INTO registrations (user_id, event_id, token, payment_status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, attended, created_at, updated_at`
	err = tx.QueryRow(ctx, q, reg.UserID, reg.EventID, reg.Token, string(reg.PaymentStatus)).
		Scan(&reg.ID, &reg.Attended, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrAlreadyRegistered
		}
		return apperror.Storage("insert registration", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return apperror.Storage("commit registration", err)
	}
	return nil
}

// GetByID returns a registration with its attendee.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations r JOIN users u ON u.id = r.user_id WHERE r.id = $1`
	reg, err := scanRegistration(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperror.NotFound("registration", id.String())
		}
		return nil, apperror.Storage("get registration", err)
	}
	return reg, nil
}

// ResolveRegistration finds the registration matching all three check-in
// credentials. Anything other than exactly one match is not found.
func (r *Repository) ResolveRegistration(ctx context.Context, token string, userID, eventID uuid.UUID) (*models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations r JOIN users u ON u.id = r.user_id
		WHERE r.token = $1 AND r.user_id = $2 AND r.event_id = $3 LIMIT 2`
	rows, err := r.db.Query(ctx, q, token, userID, eventID)
	if err != nil {
		return nil, apperror.Storage("resolve registration", err)
	}
	defer rows.Close()

	var found []*models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, apperror.Storage("scan registration", err)
		}
		found = append(found, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("resolve registration", err)
	}
	if len(found) != 1 {
		return nil, apperror.NotFound("registration", token)
	}
	return found[0], nil
}

// MarkAttended flips attended from false to true. It reports true only for the
// call that performed the transition.
func (r *Repository) MarkAttended(ctx context.Context, registrationID uuid.UUID) (bool, error) {
	const q = `UPDATE registrations SET attended = TRUE, attended_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND attended = FALSE`
	tag, err := r.db.Exec(ctx, q, registrationID)
	if err != nil {
		return false, apperror.Storage("mark attended", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByUser returns the caller's registrations newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations r JOIN users u ON u.id = r.user_id
		WHERE r.user_id = $1 ORDER BY r.created_at DESC`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, apperror.Storage("list registrations", err)
	}
	defer rows.Close()

	list := []models.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, apperror.Storage("scan registration", err)
		}
		list = append(list, *reg)
	}
	return list, apperror.Storage("list registrations", rows.Err())
}

// UpdatePaymentStatus sets the payment status of a registration.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE registrations SET payment_status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	if err != nil {
		return apperror.Storage("update payment status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("registration", id.String())
	}
	return nil
}

// DeleteByEvent removes every registration of an event and returns how many
// were deleted.
func (r *Repository) DeleteByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM registrations WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, apperror.Storage("delete registrations", err)
	}
	return tag.RowsAffected(), nil
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	var status string
	err := row.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.Token, &reg.Attended, &reg.AttendedAt, &status,
		&reg.CreatedAt, &reg.UpdatedAt, &reg.AttendeeName, &reg.AttendeeEmail)
	if err != nil {
		return nil, err
	}
	reg.PaymentStatus = models.PaymentStatus(status)
	return &reg, nil
}

// NewToken returns a random URL-safe check-in token.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
