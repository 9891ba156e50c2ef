package registrations

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/techsoc/backend/internal/apperror"
	"github.com/techsoc/backend/internal/middleware"
	"github.com/techsoc/backend/internal/models"
	"github.com/techsoc/backend/internal/roles"
	"github.com/techsoc/backend/pkg/response"
)

const qrSize = 320

// Store is the registration persistence used by the handler.
type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error
	DeleteByEvent(ctx context.Context, eventID uuid.UUID) (int64, error)
}

// EventReader loads the event being registered for.
type EventReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// PaymentRequest is the body for PATCH /registrations/:id/payment.
type PaymentRequest struct {
	Status string `json:"payment_status" binding:"required"`
}

// QRPayload is the JSON encoded into a ticket QR code. The short keys keep the
// code small enough to scan reliably from a phone screen.
type QRPayload struct {
	Token   string `json:"t"`
	UserID  string `json:"u"`
	EventID string `json:"e"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	store  Store
	events EventReader
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(store Store, events EventReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, events: events, logger: logger}
}

// Register handles POST /events/:id/register for the caller.
func (h *Handler) Register(c *gin.Context) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	ev, err := h.events.GetByID(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err, "failed to load event")
		return
	}
	if ev.Status != models.EventStatusLive {
		response.Error(c, apperror.ValidationFailed("event_id", "event is not open for registration"), "")
		return
	}

	token, err := NewToken()
	if err != nil {
		h.logger.Error("generate token failed", zap.Error(err))
		response.Internal(c, "failed to register")
		return
	}
	reg := &models.Registration{
		UserID:        id.UserID,
		EventID:       eventID,
		Token:         token,
		PaymentStatus: models.PaymentStatusFree,
	}
	if ev.IsPaid {
		reg.PaymentStatus = models.PaymentStatusPending
	}
	if err := h.store.Create(c.Request.Context(), reg); err != nil {
		h.logger.Warn("create registration failed", zap.Error(err),
			zap.String("event_id", eventID.String()), zap.String("user_id", id.UserID.String()))
		response.Error(c, err, "failed to register")
		return
	}
	h.logger.Info("registration created", zap.String("registration_id", reg.ID.String()), zap.String("event_id", eventID.String()))
	response.Created(c, reg)
}

// ListMine handles GET /me/registrations.
func (h *Handler) ListMine(c *gin.Context) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.store.ListByUser(c.Request.Context(), id.UserID)
	if err != nil {
		h.logger.Error("list registrations failed", zap.Error(err))
		response.Error(c, err, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

// QRCode handles GET /registrations/:id/qr. Only the attendee or staff may
// fetch a ticket.
func (h *Handler) QRCode(c *gin.Context) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	regID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.store.GetByID(c.Request.Context(), regID)
	if err != nil {
		response.Error(c, err, "failed to load registration")
		return
	}
	if reg.UserID != id.UserID && !roles.IsStaff(id.Role) {
		response.Forbidden(c, "not your registration")
		return
	}
	png, err := TicketQR(reg)
	if err != nil {
		h.logger.Error("encode qr failed", zap.Error(err), zap.String("registration_id", regID.String()))
		response.Internal(c, "failed to generate ticket")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// UpdatePayment handles PATCH /registrations/:id/payment.
func (h *Handler) UpdatePayment(c *gin.Context) {
	regID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "payment_status required")
		return
	}
	status := models.PaymentStatus(req.Status)
	if !status.Valid() {
		response.BadRequest(c, "invalid payment_status")
		return
	}
	if err := h.store.UpdatePaymentStatus(c.Request.Context(), regID, status); err != nil {
		response.Error(c, err, "failed to update payment")
		return
	}
	response.OK(c, gin.H{"id": regID, "payment_status": status})
}

// DeleteByEvent handles DELETE /events/:id/registrations.
func (h *Handler) DeleteByEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	n, err := h.store.DeleteByEvent(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("delete registrations failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Error(c, err, "failed to delete registrations")
		return
	}
	h.logger.Info("registrations deleted", zap.String("event_id", eventID.String()), zap.Int64("count", n))
	response.OK(c, gin.H{"deleted": n})
}

// TicketQR renders the check-in QR code for reg as a PNG.
func TicketQR(reg *models.Registration) ([]byte, error) {
	payload, err := json.Marshal(QRPayload{
		Token:   reg.Token,
		UserID:  reg.UserID.String(),
		EventID: reg.EventID.String(),
	})
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(string(payload), qrcode.Medium, qrSize)
}
