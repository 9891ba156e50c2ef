package reports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/techsoc/backend/internal/apperror"
	"github.com/techsoc/backend/pkg/database"
)

// Counts are the raw per-event registration totals.
type Counts struct {
	Registered int
	Attended   int
	Paid       int
	XPIssued   int
}

// AttendanceRow is one line of the attendance export.
type AttendanceRow struct {
	Name          string
	Email         string
	PaymentStatus string
	Attended      bool
	AttendedAt    *time.Time
	XPAwarded     int
}

// Repository runs reporting queries.
type Repository struct {
	db database.DB
}

// NewRepository creates a reports repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Counts returns registration, attendance, payment and XP totals for an event.
func (r *Repository) Counts(ctx context.Context, eventID uuid.UUID) (*Counts, error) {
	const q = `SELECT
			COUNT(*)::int,
			COUNT(*) FILTER (WHERE attended)::int,
			COUNT(*) FILTER (WHERE payment_status = 'paid')::int,
			COALESCE((SELECT SUM(xp_amount) FROM xp_awards WHERE event_id = $1), 0)::int
		FROM registrations WHERE event_id = $1`
	var c Counts
	if err := r.db.QueryRow(ctx, q, eventID).Scan(&c.Registered, &c.Attended, &c.Paid, &c.XPIssued); err != nil {
		return nil, apperror.Storage("event counts", err)
	}
	return &c, nil
}

// Attendance returns every registration of an event with its attendee and award.
func (r *Repository) Attendance(ctx context.Context, eventID uuid.UUID) ([]AttendanceRow, error) {
	const q = `SELECT u.name, u.email, r.payment_status, r.attended, r.attended_at, COALESCE(a.xp_amount, 0)
		FROM registrations r
		JOIN users u ON u.id = r.user_id
		LEFT JOIN xp_awards a ON a.user_id = r.user_id AND a.event_id = r.event_id
		WHERE r.event_id = $1
		ORDER BY u.name, u.email`
	rows, err := r.db.Query(ctx, q, eventID)
	if err != nil {
		return nil, apperror.Storage("attendance", err)
	}
	defer rows.Close()

	list := []AttendanceRow{}
	for rows.Next() {
		var row AttendanceRow
		if err := rows.Scan(&row.Name, &row.Email, &row.PaymentStatus, &row.Attended, &row.AttendedAt, &row.XPAwarded); err != nil {
			return nil, apperror.Storage("scan attendance", err)
		}
		list = append(list, row)
	}
	return list, apperror.Storage("attendance", rows.Err())
}
