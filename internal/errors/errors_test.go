package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	cause := stderrors.New("boom")

	tests := []struct {
		name       string
		err        *AppError
		wantType   ErrorType
		wantStatus int
	}{
		{"validation", NewValidationError("bad input", nil), ErrorTypeValidation, http.StatusBadRequest},
		{"configuration", NewConfigurationError("missing key", nil), ErrorTypeConfiguration, http.StatusServiceUnavailable},
		{"processing", NewProcessingError("cannot decode", cause), ErrorTypeProcessing, http.StatusUnprocessableEntity},
		{"timeout", NewTimeoutError("too slow", cause), ErrorTypeTimeout, http.StatusRequestTimeout},
		{"internal", NewInternalError("oops", nil), ErrorTypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantStatus, GetStatusCode(tt.err))
			assert.True(t, IsType(tt.err, tt.wantType))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "validation: bad input", NewValidationError("bad input", nil).Error())
	assert.Equal(t, "processing: cannot decode (caused by: boom)",
		NewProcessingError("cannot decode", stderrors.New("boom")).Error())
}

func TestWrappedAppError(t *testing.T) {
	cause := stderrors.New("boom")
	wrapped := fmt.Errorf("handler: %w", NewProcessingError("cannot decode", cause))

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeProcessing, appErr.Type)
	assert.True(t, stderrors.Is(wrapped, cause))
	assert.Equal(t, http.StatusUnprocessableEntity, GetStatusCode(wrapped))
}

func TestPlainErrorDefaults(t *testing.T) {
	err := stderrors.New("plain")
	assert.False(t, IsType(err, ErrorTypeValidation))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(err))
}

func TestWithDetails(t *testing.T) {
	base := NewConfigurationError("missing key", nil)
	detailed := base.WithDetails("set the key")

	assert.Empty(t, base.Details)
	assert.Equal(t, "set the key", detailed.Details)
	assert.Equal(t, base.Type, detailed.Type)
}
