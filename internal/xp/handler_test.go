package xp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/techsoc/backend/internal/middleware"
	"github.com/techsoc/backend/internal/models"
)

type MockReader struct {
	mock.Mock
}

func (m *MockReader) History(ctx context.Context, userID uuid.UUID) ([]models.XPAward, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.XPAward), args.Error(1)
}

func (m *MockReader) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.LeaderboardEntry), args.Error(1)
}

func (m *MockReader) Reconcile(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestHandler_Leaderboard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockReader)
	svc.On("Leaderboard", mock.Anything, 20).Return([]models.LeaderboardEntry{{Rank: 1, Name: "Ada", XPPoints: 500}}, nil)

	r := gin.New()
	r.GET("/leaderboard", NewHandler(svc, zap.NewNop()).Leaderboard)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leaderboard?limit=20", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"xp_points":500`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leaderboard?limit=500", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_MyHistory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()
	svc := new(MockReader)
	svc.On("History", mock.Anything, userID).Return([]models.XPAward{{XPAmount: 100}, {XPAmount: 250}}, nil)

	r := gin.New()
	r.GET("/me/xp", func(c *gin.Context) {
		middleware.SetIdentity(c, middleware.Identity{UserID: userID, Role: models.RoleStudent})
	}, NewHandler(svc, zap.NewNop()).MyHistory)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me/xp", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Total  int              `json:"total"`
			Awards []models.XPAward `json:"awards"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 350, body.Data.Total)
	assert.Len(t, body.Data.Awards, 2)
}
