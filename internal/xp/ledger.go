package xp

import (
	"context"

	"github.com/google/uuid"

	"github.com/techsoc/backend/internal/apperror"
	"github.com/techsoc/backend/internal/models"
	"github.com/techsoc/backend/pkg/database"
)

const (
	// DefaultLeaderboardLimit is used when no limit is requested.
	DefaultLeaderboardLimit = 10
	// MaxLeaderboardLimit bounds a single leaderboard page.
	MaxLeaderboardLimit = 100
)

// ErrAlreadyAwarded means the attendee already holds an award for the event.
var ErrAlreadyAwarded = &apperror.AppError{Err: apperror.ErrConflict, Message: "xp already awarded for this event"}

// Ledger records XP awards and keeps users.xp_points in step with them.
type Ledger struct {
	db database.DB
}

// NewLedger creates an XP ledger.
func NewLedger(db database.DB) *Ledger {
	return &Ledger{db: db}
}

// Award appends an award row and increments the attendee's total in one
// transaction. At most one award exists per (user, event).
func (l *Ledger) Award(ctx context.Context, userID, eventID uuid.UUID, amount int) (award *models.XPAward, err error) {
	if amount < 0 {
		return nil, apperror.ValidationFailed("xp_amount", "xp amount must not be negative")
	}
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, apperror.Storage("begin award", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	a := models.XPAward{UserID: userID, EventID: eventID, XPAmount: amount}
	const insert = `INSERT INTO xp_awards (user_id, event_id, xp_amount) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, event_id) DO NOTHING
		RETURNING id, awarded_at`
	if err = tx.QueryRow(ctx, insert, userID, eventID, amount).Scan(&a.ID, &a.AwardedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, ErrAlreadyAwarded
		}
		return nil, apperror.Storage("insert xp award", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE users SET xp_points = xp_points + $1, updated_at = NOW() WHERE id = $2`, amount, userID)
	if err != nil {
		return nil, apperror.Storage("increment xp", err)
	}
	if tag.RowsAffected() == 0 {
		err = apperror.NotFound("user", userID.String())
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, apperror.Storage("commit award", err)
	}
	return &a, nil
}

// History returns a user's awards newest first.
func (l *Ledger) History(ctx context.Context, userID uuid.UUID) ([]models.XPAward, error) {
	const q = `SELECT a.id, a.user_id, a.event_id, a.xp_amount, a.awarded_at, e.title
		FROM xp_awards a JOIN events e ON e.id = a.event_id
		WHERE a.user_id = $1 ORDER BY a.awarded_at DESC`
	rows, err := l.db.Query(ctx, q, userID)
	if err != nil {
		return nil, apperror.Storage("xp history", err)
	}
	defer rows.Close()

	list := []models.XPAward{}
	for rows.Next() {
		var a models.XPAward
		if err := rows.Scan(&a.ID, &a.UserID, &a.EventID, &a.XPAmount, &a.AwardedAt, &a.EventTitle); err != nil {
			return nil, apperror.Storage("scan xp award", err)
		}
		list = append(list, a)
	}
	return list, apperror.Storage("xp history", rows.Err())
}

// Leaderboard returns the top users by XP. Ties share a rank.
func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	limit = ClampLimit(limit)
	const q = `SELECT RANK() OVER (ORDER BY xp_points DESC)::int, id, COALESCE(NULLIF(name, ''), email), xp_points
		FROM users ORDER BY xp_points DESC, name ASC LIMIT $1`
	rows, err := l.db.Query(ctx, q, limit)
	if err != nil {
		return nil, apperror.Storage("leaderboard", err)
	}
	defer rows.Close()

	list := make([]models.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.Rank, &e.UserID, &e.Name, &e.XPPoints); err != nil {
			return nil, apperror.Storage("scan leaderboard", err)
		}
		list = append(list, e)
	}
	return list, apperror.Storage("leaderboard", rows.Err())
}

// reconcileAttempts bounds retries when a concurrent award aborts Reconcile.
const reconcileAttempts = 3

// Reconcile rewrites every users.xp_points that disagrees with the sum of its
// awards and returns how many users were corrected. It runs under REPEATABLE
// READ so an award committed mid-statement aborts the pass instead of being
// overwritten by a stale sum.
func (l *Ledger) Reconcile(ctx context.Context) (corrected int64, err error) {
	for attempt := 1; ; attempt++ {
		corrected, err = l.reconcileOnce(ctx)
		if err == nil || !database.IsSerializationFailure(err) || attempt == reconcileAttempts {
			return corrected, err
		}
	}
}

func (l *Ledger) reconcileOnce(ctx context.Context) (n int64, err error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return 0, apperror.Storage("begin reconcile", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SET TRANSACTION ISOLATION LEVEL REPEATABLE READ`); err != nil {
		return 0, apperror.Storage("reconcile isolation", err)
	}
	const q = `UPDATE users u SET xp_points = s.total, updated_at = NOW()
		FROM (
			SELECT u2.id, COALESCE(SUM(a.xp_amount), 0)::int AS total
			FROM users u2 LEFT JOIN xp_awards a ON a.user_id = u2.id
			GROUP BY u2.id
		) s
		WHERE s.id = u.id AND u.xp_points <> s.total`
	tag, err := tx.Exec(ctx, q)
	if err != nil {
		return 0, apperror.Storage("reconcile xp", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, apperror.Storage("commit reconcile", err)
	}
	return tag.RowsAffected(), nil
}

// ClampLimit normalizes a requested leaderboard size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		return MaxLeaderboardLimit
	}
	return limit
}
