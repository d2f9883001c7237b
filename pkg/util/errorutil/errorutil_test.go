package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Run("Should pass through domain errors", func(t *testing.T) {
		err := NewValidationError("bad input", map[string]any{"field": "subject"})
		domainErr := ToDomainError(err)
		assert.Equal(t, CodeValidation, domainErr.Code)
		assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus)
	})

	t.Run("Should unwrap wrapped domain errors", func(t *testing.T) {
		wrapped := fmt.Errorf("lookup: %w", NewAccessDenied("nope"))
		domainErr := ToDomainError(wrapped)
		assert.Equal(t, CodeAccessDenied, domainErr.Code)
	})

	t.Run("Should map pgx.ErrNoRows to not found", func(t *testing.T) {
		domainErr := ToDomainError(pgx.ErrNoRows)
		assert.Equal(t, http.StatusNotFound, domainErr.HTTPStatus)
	})

	t.Run("Should map unknown errors to internal", func(t *testing.T) {
		domainErr := ToDomainError(errors.New("boom"))
		assert.Equal(t, CodeInternal, domainErr.Code)
		assert.Equal(t, http.StatusInternalServerError, domainErr.HTTPStatus)
	})

	t.Run("Should return nil for nil", func(t *testing.T) {
		require.Nil(t, ToDomainError(nil))
	})
}

func TestHasCode(t *testing.T) {
	err := NewTicketNotFound(map[string]any{"ticket_id": 1})
	assert.True(t, HasCode(err, CodeTicketNotFound))
	assert.False(t, HasCode(err, CodeUserNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeTicketNotFound))
}
