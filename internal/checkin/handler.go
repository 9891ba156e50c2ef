package checkin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/techsoc/backend/internal/apperror"
	"github.com/techsoc/backend/internal/middleware"
)

const (
	msgCheckedIn        = "Check-in successful"
	msgAlreadyCheckedIn = "Already checked in"
	msgNotFound         = "Registration not found"
	msgInternal         = "Something went wrong. Please try again."
)

// Scanner is the scan operation used by the handler.
type Scanner interface {
	Scan(ctx context.Context, in ScanInput) (*Result, error)
}

// Handler serves the scan endpoint.
type Handler struct {
	scanner Scanner
	logger  *zap.Logger
}

// NewHandler creates a check-in handler.
func NewHandler(scanner Scanner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{scanner: scanner, logger: logger}
}

// Scan handles POST /checkin/scan.
func (h *Handler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ScanResponse{Success: false, Message: "invalid request body"})
		return
	}

	res, err := h.scanner.Scan(c.Request.Context(), req.Input())
	if err != nil {
		h.writeError(c, err)
		return
	}

	if res.Outcome == OutcomeAlreadyCheckedIn {
		c.JSON(http.StatusOK, ScanResponse{Success: false, Message: msgAlreadyCheckedIn, UserName: res.UserName})
		return
	}
	awarded := res.XPAwarded
	c.JSON(http.StatusOK, ScanResponse{
		Success:   true,
		Message:   msgCheckedIn,
		UserName:  res.UserName,
		XPAwarded: &awarded,
		XPMessage: res.XPMessage,
		XPPending: res.XPPending,
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		var ae *apperror.AppError
		field := ""
		if errors.As(err, &ae) {
			field = ae.Field
		}
		c.JSON(http.StatusBadRequest, ScanResponse{Success: false, Message: apperror.Message(err, "invalid request"), Field: field})
	case errors.Is(err, apperror.ErrNotFound):
		c.JSON(http.StatusNotFound, ScanResponse{Success: false, Message: msgNotFound})
	default:
		fields := []zap.Field{zap.Error(err)}
		if id, ok := middleware.CurrentIdentity(c); ok {
			fields = append(fields, zap.String("operator_id", id.UserID.String()))
		}
		h.logger.Error("check-in scan failed", fields...)
		c.JSON(http.StatusInternalServerError, ScanResponse{Success: false, Message: msgInternal})
	}
}
