package xp

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/techsoc/backend/internal/middleware"
	"github.com/techsoc/backend/internal/models"
	"github.com/techsoc/backend/pkg/response"
)

// Reader is the XP query surface used by the handler.
type Reader interface {
	History(ctx context.Context, userID uuid.UUID) ([]models.XPAward, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	Reconcile(ctx context.Context) (int64, error)
}

// Handler handles XP and leaderboard endpoints.
type Handler struct {
	svc    Reader
	logger *zap.Logger
}

// NewHandler creates an XP handler.
func NewHandler(svc Reader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Leaderboard handles GET /leaderboard?limit=10.
func (h *Handler) Leaderboard(c *gin.Context) {
	limit := DefaultLeaderboardLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxLeaderboardLimit {
			response.BadRequest(c, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	list, err := h.svc.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("leaderboard failed", zap.Error(err))
		response.Error(c, err, "failed to load leaderboard")
		return
	}
	response.OK(c, list)
}

// MyHistory handles GET /me/xp.
func (h *Handler) MyHistory(c *gin.Context) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.svc.History(c.Request.Context(), id.UserID)
	if err != nil {
		h.logger.Error("xp history failed", zap.Error(err), zap.String("user_id", id.UserID.String()))
		response.Error(c, err, "failed to load xp history")
		return
	}
	total := 0
	for _, a := range list {
		total += a.XPAmount
	}
	response.OK(c, gin.H{"total": total, "awards": list})
}

// Reconcile handles POST /admin/xp/reconcile.
func (h *Handler) Reconcile(c *gin.Context) {
	n, err := h.svc.Reconcile(c.Request.Context())
	if err != nil {
		h.logger.Error("xp reconcile failed", zap.Error(err))
		response.Error(c, err, "failed to reconcile xp")
		return
	}
	h.logger.Info("xp reconciled", zap.Int64("corrected", n))
	response.OK(c, gin.H{"corrected": n})
}
