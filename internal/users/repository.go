package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/techsoc/backend/internal/apperror"
	"github.com/techsoc/backend/internal/models"
	"github.com/techsoc/backend/pkg/database"
)

// Repository handles identity persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a users repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Upsert records the identity the issuer vouched for. xp_points is never
// touched here.
func (r *Repository) Upsert(ctx context.Context, id uuid.UUID, email, name string) (*models.User, error) {
	const q = `INSERT INTO users (id, email, name) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name, updated_at = NOW()
		RETURNING id, email, name, xp_points, created_at, updated_at`
	var u models.User
	err := r.db.QueryRow(ctx, q, id, email, name).
		Scan(&u.ID, &u.Email, &u.Name, &u.XPPoints, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperror.Conflict("user email", email)
		}
		return nil, apperror.Storage("upsert user", err)
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, name, xp_points, created_at, updated_at FROM users WHERE id = $1`
	var u models.User
	err := r.db.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.Name, &u.XPPoints, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperror.NotFound("user", id.String())
		}
		return nil, apperror.Storage("get user", err)
	}
	return &u, nil
}
