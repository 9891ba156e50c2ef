// Package reports serves per-event analytics and attendance exports.
package reports

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/techsoc/backend/internal/models"
	"github.com/techsoc/backend/pkg/response"
	"github.com/techsoc/backend/pkg/storage"
)

// Store is the reporting query surface.
type Store interface {
	Counts(ctx context.Context, eventID uuid.UUID) (*Counts, error)
	Attendance(ctx context.Context, eventID uuid.UUID) ([]AttendanceRow, error)
}

// EventReader loads the reported event.
type EventReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Uploader stores exports and signs download links. *storage.S3 satisfies it.
type Uploader interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error
	GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
	ExportsBucket() string
	PresignExpire() time.Duration
}

// SummaryResponse is the analytics JSON for one event.
type SummaryResponse struct {
	EventID            uuid.UUID `json:"event_id"`
	Title              string    `json:"title"`
	TotalRegistrations int       `json:"total_registrations"`
	TotalAttended      int       `json:"total_attended"`
	TotalNoShow        int       `json:"total_no_show"`
	TotalPaid          int       `json:"total_paid"`
	AttendanceRate     float64   `json:"attendance_rate"`
	XPIssued           int       `json:"xp_issued"`
	RevenueCents       *int      `json:"revenue_cents,omitempty"`
}

// ExportResponse points at an uploaded attendance CSV.
type ExportResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Rows      int       `json:"rows"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Handler handles reporting endpoints.
type Handler struct {
	store    Store
	events   EventReader
	uploader Uploader
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler creates a reports handler. uploader may be nil when S3 is not configured.
func NewHandler(store Store, events EventReader, uploader Uploader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, events: events, uploader: uploader, logger: logger, now: time.Now}
}

// Summary handles GET /events/:id/analytics.
func (h *Handler) Summary(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}
	counts, err := h.store.Counts(c.Request.Context(), ev.ID)
	if err != nil {
		h.logger.Error("event counts failed", zap.Error(err), zap.String("event_id", ev.ID.String()))
		response.Error(c, err, "failed to load analytics")
		return
	}
	response.OK(c, Summarize(ev, counts))
}

// Export handles POST /events/:id/attendance/export.
func (h *Handler) Export(c *gin.Context) {
	if h.uploader == nil {
		response.ServiceUnavailable(c, "exports are not configured")
		return
	}
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	rows, err := h.store.Attendance(ctx, ev.ID)
	if err != nil {
		h.logger.Error("attendance query failed", zap.Error(err), zap.String("event_id", ev.ID.String()))
		response.Error(c, err, "failed to export attendance")
		return
	}

	var buf bytes.Buffer
	if err := WriteAttendanceCSV(&buf, rows); err != nil {
		h.logger.Error("write csv failed", zap.Error(err))
		response.Internal(c, "failed to export attendance")
		return
	}

	now := h.now()
	key := storage.ExportKey(ev.ID.String(), now)
	bucket := h.uploader.ExportsBucket()
	if err := h.uploader.Upload(ctx, bucket, key, storage.ContentTypeCSV, &buf); err != nil {
		h.logger.Error("export upload failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to upload export")
		return
	}
	expires := h.uploader.PresignExpire()
	url, err := h.uploader.GeneratePresignedDownloadURL(ctx, bucket, key, expires)
	if err != nil {
		h.logger.Error("presign export failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to sign export link")
		return
	}
	h.logger.Info("attendance exported", zap.String("event_id", ev.ID.String()), zap.String("key", key), zap.Int("rows", len(rows)))
	response.OK(c, ExportResponse{Key: key, URL: url, Rows: len(rows), ExpiresAt: now.Add(expires).UTC()})
}

func (h *Handler) loadEvent(c *gin.Context) (*models.Event, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return nil, false
	}
	ev, err := h.events.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load event")
		return nil, false
	}
	return ev, true
}

// Summarize derives the analytics view from raw counts.
func Summarize(ev *models.Event, c *Counts) SummaryResponse {
	s := SummaryResponse{
		EventID:            ev.ID,
		Title:              ev.Title,
		TotalRegistrations: c.Registered,
		TotalAttended:      c.Attended,
		TotalNoShow:        c.Registered - c.Attended,
		TotalPaid:          c.Paid,
		XPIssued:           c.XPIssued,
	}
	if c.Registered > 0 {
		s.AttendanceRate = float64(c.Attended) / float64(c.Registered)
	}
	if ev.IsPaid {
		revenue := c.Paid * ev.TicketPriceCents
		s.RevenueCents = &revenue
	}
	return s
}
