package events

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/techsoc/backend/internal/apperror"
	"github.com/techsoc/backend/internal/middleware"
	"github.com/techsoc/backend/internal/models"
	"github.com/techsoc/backend/pkg/response"
)

// Store is the event persistence used by the handler.
type Store interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, status *models.EventStatus) ([]models.Event, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error
}

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Title            string    `json:"title" binding:"required"`
	Description      string    `json:"description"`
	Location         string    `json:"location"`
	StartTime        time.Time `json:"start_time" binding:"required"`
	EndTime          time.Time `json:"end_time" binding:"required"`
	EventType        string    `json:"event_type"`
	DifficultyLevel  string    `json:"difficulty_level"`
	IsMultiDay       bool      `json:"is_multi_day"`
	Capacity         int       `json:"capacity"`
	Status           string    `json:"status"`
	IsPaid           bool      `json:"is_paid"`
	TicketPriceCents int       `json:"ticket_price_cents"`
}

// StatusRequest is the body for PATCH /events/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e := req.toEvent()
	if id, ok := middleware.CurrentIdentity(c); ok {
		e.CreatedBy = &id.UserID
	}
	if err := Validate(e); err != nil {
		response.Error(c, err, "invalid event")
		return
	}
	if err := h.store.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event failed", zap.Error(err))
		response.Error(c, err, "failed to create event")
		return
	}
	response.Created(c, e)
}

// List handles GET /events?status=live.
func (h *Handler) List(c *gin.Context) {
	var status *models.EventStatus
	if s := c.Query("status"); s != "" {
		st := models.EventStatus(s)
		if !st.Valid() {
			response.BadRequest(c, "invalid status")
			return
		}
		status = &st
	}
	list, err := h.store.List(c.Request.Context(), status)
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Error(c, err, "failed to list events")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load event")
		return
	}
	response.OK(c, e)
}

// UpdateStatus handles PATCH /events/:id/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status required")
		return
	}
	status := models.EventStatus(req.Status)
	if !status.Valid() {
		response.BadRequest(c, "invalid status")
		return
	}
	if err := h.store.UpdateStatus(c.Request.Context(), id, status); err != nil {
		response.Error(c, err, "failed to update event")
		return
	}
	response.OK(c, gin.H{"id": id, "status": status})
}

// Validate checks the invariants the database also enforces, so callers get a 400
// instead of a constraint error.
func Validate(e *models.Event) error {
	if strings.TrimSpace(e.Title) == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if e.StartTime.IsZero() || e.EndTime.IsZero() {
		return apperror.ValidationFailed("start_time", "start_time and end_time are required")
	}
	if e.EndTime.Before(e.StartTime) {
		return apperror.ValidationFailed("end_time", "end_time must not be before start_time")
	}
	if e.Capacity < 0 {
		return apperror.ValidationFailed("capacity", "capacity must be >= 0")
	}
	if e.TicketPriceCents < 0 {
		return apperror.ValidationFailed("ticket_price_cents", "ticket_price_cents must be >= 0")
	}
	if !e.Status.Valid() {
		return apperror.ValidationFailed("status", "status must be draft, live or completed")
	}
	return nil
}

func (r CreateRequest) toEvent() *models.Event {
	status := models.EventStatus(r.Status)
	if r.Status == "" {
		status = models.EventStatusDraft
	}
	return &models.Event{
		Title:            strings.TrimSpace(r.Title),
		Description:      r.Description,
		Location:         r.Location,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		EventType:        strings.ToLower(strings.TrimSpace(r.EventType)),
		DifficultyLevel:  strings.ToLower(strings.TrimSpace(r.DifficultyLevel)),
		IsMultiDay:       r.IsMultiDay,
		Capacity:         r.Capacity,
		Status:           status,
		IsPaid:           r.IsPaid,
		TicketPriceCents: r.TicketPriceCents,
	}
}
