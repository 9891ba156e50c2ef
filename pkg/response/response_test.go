package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techsoc/backend/internal/apperror"
)

func TestError_MapsTaxonomy(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantField  string
	}{
		{"validation", apperror.ValidationFailed("capacity", "capacity must be >= 0"), http.StatusBadRequest, "capacity must be >= 0", "capacity"},
		{"not found", apperror.NotFound("event", "x"), http.StatusNotFound, "event not found with id x", ""},
		{"conflict", apperror.Conflict("registration", "x"), http.StatusConflict, "registration conflict with id x", ""},
		{"forbidden", apperror.Forbidden("not yours"), http.StatusForbidden, "not yours", ""},
		{"storage hides cause", apperror.Storage("insert", errors.New("password=secret")), http.StatusInternalServerError, "failed", ""},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "failed", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			Error(c, tt.err, "failed")

			assert.Equal(t, tt.wantStatus, w.Code)
			var body Body
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantError, body.Error)
			assert.Equal(t, tt.wantField, body.Field)
		})
	}
}

func TestOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	OK(c, gin.H{"status": "ok"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"status":"ok"}}`, w.Body.String())
}
