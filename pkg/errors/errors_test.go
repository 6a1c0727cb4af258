package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := ErrValidation.WithMessage("scope is required").WithDetail("field", "scope")

	assert.True(t, stderrors.Is(err, ErrValidation))
	assert.False(t, stderrors.Is(err, ErrNotFound))
	assert.True(t, IsValidation(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, "VALIDATION_ERROR: scope is required", err.Error())
	assert.Empty(t, ErrValidation.Details, "sentinel must not be mutated")
}

func TestRetryability(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{"validation is permanent", ErrValidation, false},
		{"decode is permanent", ErrDecode, false},
		{"unavailable is retryable", ErrServiceUnavailable, true},
		{"explicit fatal", ErrInternal.AsFatal(), false},
		{"explicit retryable", ErrNotFound.AsRetryable(), true},
		{"cause decides", ErrInternal.WithCause(ErrValidation), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
			assert.Equal(t, !tt.retryable, tt.err.IsFatal())
		})
	}
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(ErrNotFound.WithMessage("no such surface").WithDetail("surface", "mobileapp://x"))
	assert.Equal(t, "no such surface", resp["error"])
	assert.Equal(t, "NOT_FOUND", resp["error_code"])
	assert.Equal(t, map[string]interface{}{"surface": "mobileapp://x"}, resp["details"])

	resp = ToErrorResponse(stderrors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", resp["error_code"])
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(stderrors.New("boom")))
}

func TestGuardRecoversPanic(t *testing.T) {
	err := Guard(func() error {
		panic("bad unit")
	})
	require.Error(t, err)
	assert.True(t, err.(*Error).IsFatal())
	assert.Equal(t, true, err.(*Error).Details["panic"])
	assert.True(t, IsPanic(err))
	assert.False(t, IsPanic(ErrInternal))

	assert.NoError(t, Guard(func() error { return nil }))
}
