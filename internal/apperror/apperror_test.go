package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{name: "NotFound wraps ErrNotFound", err: NotFound("registration", "abc"), target: ErrNotFound, wantMatch: true},
		{name: "ValidationFailed wraps ErrValidation", err: ValidationFailed("token", "token is required"), target: ErrValidation, wantMatch: true},
		{name: "Conflict wraps ErrConflict", err: Conflict("xp award", "abc"), target: ErrConflict, wantMatch: true},
		{name: "Forbidden wraps ErrForbidden", err: Forbidden("nope"), target: ErrForbidden, wantMatch: true},
		{name: "Storage wraps ErrStorage", err: Storage("mark attended", errors.New("conn reset")), target: ErrStorage, wantMatch: true},
		{name: "NotFound does not match ErrValidation", err: NotFound("registration", "abc"), target: ErrValidation, wantMatch: false},
		{name: "wrapped with fmt still matches", err: fmt.Errorf("resolve: %w", NotFound("registration", "abc")), target: ErrNotFound, wantMatch: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMatch, errors.Is(tt.err, tt.target))
		})
	}
}

func TestStorageKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Storage("award xp", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "award xp: connection refused", err.Error())
	assert.Nil(t, Storage("noop", nil))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "token is required", Message(ValidationFailed("token", "token is required"), "fallback"))
	assert.Equal(t, "fallback", Message(Storage("op", errors.New("secret dsn")), "fallback"))
	assert.Equal(t, "fallback", Message(errors.New("plain"), "fallback"))
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("userId", "userId must be a UUID")
	assert.Equal(t, "userId", err.Field)
}
