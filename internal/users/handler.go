package users

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/techsoc/backend/internal/middleware"
	"github.com/techsoc/backend/internal/models"
	"github.com/techsoc/backend/pkg/response"
)

// Store is the persistence the handler needs.
type Store interface {
	Upsert(ctx context.Context, id uuid.UUID, email, name string) (*models.User, error)
}

// Handler handles identity endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// Me handles GET /me: records the caller and returns them with the derived role.
func (h *Handler) Me(c *gin.Context) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	u, err := h.store.Upsert(c.Request.Context(), id.UserID, id.Email, id.Name)
	if err != nil {
		h.logger.Error("upsert identity failed", zap.Error(err), zap.String("user_id", id.UserID.String()))
		response.Error(c, err, "failed to load profile")
		return
	}
	response.OK(c, u.ToPublic(id.Role))
}

// EnsureIdentity is middleware that records the caller before handlers that
// reference users by foreign key (registration, scanning).
func EnsureIdentity(store Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := middleware.CurrentIdentity(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if _, err := store.Upsert(c.Request.Context(), id.UserID, id.Email, id.Name); err != nil {
			logger.Error("ensure identity failed", zap.Error(err), zap.String("user_id", id.UserID.String()))
			response.Error(c, err, "failed to load profile")
			c.Abort()
			return
		}
		c.Next()
	}
}
