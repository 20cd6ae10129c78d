package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	t.Run("coded error", func(t *testing.T) {
		err := New(CodeCapExceeded, "maximum supply exceeded")
		assert.Equal(t, CodeCapExceeded, CodeOf(err))
	})

	t.Run("wrapped coded error", func(t *testing.T) {
		err := fmt.Errorf("buy tokens: %w", New(CodeUnauthorized, "caller is not the token owner"))
		assert.Equal(t, CodeUnauthorized, CodeOf(err))
	})

	t.Run("plain error maps to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "failed to load investor")

	require.ErrorIs(t, err, cause)

	de, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, "failed to load investor", de.Message)
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, ToHTTPStatus(CodeUnauthorized))
	assert.Equal(t, http.StatusForbidden, ToHTTPStatus(CodeComplianceRejected))
	assert.Equal(t, http.StatusConflict, ToHTTPStatus(CodePeriodAlreadyReported))
	assert.Equal(t, http.StatusUnprocessableEntity, ToHTTPStatus(CodeCapExceeded))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(Code("mystery")))
}
