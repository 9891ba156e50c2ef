package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/techsoc/backend/internal/apperror"
	"github.com/techsoc/backend/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Counts(ctx context.Context, eventID uuid.UUID) (*Counts, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Counts), args.Error(1)
}

func (m *MockStore) Attendance(ctx context.Context, eventID uuid.UUID) ([]AttendanceRow, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).([]AttendanceRow), args.Error(1)
}

type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

type MockUploader struct {
	mock.Mock
	body []byte
}

func (m *MockUploader) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	m.body, _ = io.ReadAll(body)
	return m.Called(ctx, bucket, key, contentType).Error(0)
}

func (m *MockUploader) GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	args := m.Called(ctx, bucket, key, expires)
	return args.String(0), args.Error(1)
}

func (m *MockUploader) ExportsBucket() string        { return "exports-bucket" }
func (m *MockUploader) PresignExpire() time.Duration { return 15 * time.Minute }

func TestSummarize(t *testing.T) {
	ev := &models.Event{ID: uuid.New(), Title: "Hack Night", IsPaid: true, TicketPriceCents: 500}
	s := Summarize(ev, &Counts{Registered: 40, Attended: 30, Paid: 36, XPIssued: 9000})

	assert.Equal(t, 10, s.TotalNoShow)
	assert.InDelta(t, 0.75, s.AttendanceRate, 1e-9)
	require.NotNil(t, s.RevenueCents)
	assert.Equal(t, 18000, *s.RevenueCents)

	free := Summarize(&models.Event{ID: uuid.New()}, &Counts{})
	assert.Zero(t, free.AttendanceRate)
	assert.Nil(t, free.RevenueCents)
}

func TestWriteAttendanceCSV(t *testing.T) {
	at := time.Date(2026, 4, 2, 14, 5, 0, 0, time.UTC)
	rows := []AttendanceRow{
		{Name: "Grace Hopper", Email: "grace@uni.edu", PaymentStatus: "paid", Attended: true, AttendedAt: &at, XPAwarded: 100},
		{Name: "Lovelace, Ada", Email: "ada@uni.edu", PaymentStatus: "free"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteAttendanceCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"Grace Hopper", "grace@uni.edu", "paid", "true", "2026-04-02T14:05:00Z", "100"}, records[1])
	assert.Equal(t, []string{"Lovelace, Ada", "ada@uni.edu", "free", "false", "", "0"}, records[2])
}

func TestWriteAttendanceCSV_NeutralisesFormulas(t *testing.T) {
	rows := []AttendanceRow{
		{Name: `=HYPERLINK("http://evil.example","click")`, Email: "@SUM(A1)", PaymentStatus: "free"},
		{Name: "+1 555", Email: "-x@uni.edu", PaymentStatus: "free"},
		{Name: "Ada-Lovelace", Email: "ada@uni.edu", PaymentStatus: "free"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteAttendanceCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, `'=HYPERLINK("http://evil.example","click")`, records[1][0])
	assert.Equal(t, "'@SUM(A1)", records[1][1])
	assert.Equal(t, "'+1 555", records[2][0])
	assert.Equal(t, "'-x@uni.edu", records[2][1])
	assert.Equal(t, "Ada-Lovelace", records[3][0])
}

func TestRepository_Counts(t *testing.T) {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer db.Close()

	eventID := uuid.New()
	db.ExpectQuery(regexp.QuoteMeta(`FROM registrations WHERE event_id = $1`)).WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows([]string{"registered", "attended", "paid", "xp"}).AddRow(12, 9, 0, 900))

	c, err := NewRepository(db).Counts(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, &Counts{Registered: 12, Attended: 9, Paid: 0, XPIssued: 900}, c)
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestHandler_Summary_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	events := new(MockEvents)
	id := uuid.New()
	events.On("GetByID", mock.Anything, id).Return(nil, apperror.NotFound("event", id.String()))

	r := gin.New()
	r.GET("/events/:id/analytics", NewHandler(new(MockStore), events, nil, zap.NewNop()).Summary)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/"+id.String()+"/analytics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Export_NotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/events/:id/attendance/export", NewHandler(new(MockStore), new(MockEvents), nil, zap.NewNop()).Export)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events/"+uuid.NewString()+"/attendance/export", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandler_Export(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ev := &models.Event{ID: uuid.New(), Title: "Intro to Go"}
	store, events, up := new(MockStore), new(MockEvents), new(MockUploader)
	events.On("GetByID", mock.Anything, ev.ID).Return(ev, nil)
	store.On("Attendance", mock.Anything, ev.ID).Return([]AttendanceRow{{Name: "Grace", Email: "g@uni.edu", PaymentStatus: "free"}}, nil)

	now := time.Date(2026, 4, 2, 18, 0, 0, 0, time.UTC)
	wantKey := "exports/" + ev.ID.String() + "/20260402T180000Z.csv"
	up.On("Upload", mock.Anything, "exports-bucket", wantKey, "text/csv").Return(nil)
	up.On("GeneratePresignedDownloadURL", mock.Anything, "exports-bucket", wantKey, 15*time.Minute).
		Return("https://s3.example/signed", nil)

	h := NewHandler(store, events, up, zap.NewNop())
	h.now = func() time.Time { return now }
	r := gin.New()
	r.POST("/events/:id/attendance/export", h.Export)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events/"+ev.ID.String()+"/attendance/export", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data ExportResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, wantKey, body.Data.Key)
	assert.Equal(t, "https://s3.example/signed", body.Data.URL)
	assert.Equal(t, 1, body.Data.Rows)
	assert.Contains(t, string(up.body), "Grace,g@uni.edu,free,false,,0")
	up.AssertExpectations(t)
}
