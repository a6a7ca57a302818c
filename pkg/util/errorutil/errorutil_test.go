package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/review-service/internal/domain"
)

func TestToDomainError_MapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{fmt.Errorf("%w: expired", domain.ErrUnauthenticated), "UNAUTHENTICATED", http.StatusUnauthorized},
		{fmt.Errorf("%w: no update", domain.ErrForbidden), "FORBIDDEN", http.StatusForbidden},
		{fmt.Errorf("%w: nope", domain.ErrIllegalTransition), "ILLEGAL_TRANSITION", http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: finalized", domain.ErrRecordImmutable), "RECORD_IMMUTABLE", http.StatusConflict},
		{fmt.Errorf("%w: stale", domain.ErrConcurrentModification), "CONCURRENT_MODIFICATION", http.StatusConflict},
		{fmt.Errorf("load: %w", pgx.ErrNoRows), "NOT_FOUND", http.StatusNotFound},
		{domain.ErrInvalidInput, "VALIDATION_FAILED", http.StatusBadRequest},
		{errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got := ToDomainError(tc.err)
		require.NotNil(t, got)
		assert.Equal(t, tc.code, got.Code, tc.err.Error())
		assert.Equal(t, tc.status, got.HTTPStatus, tc.err.Error())
		assert.ErrorIs(t, got, tc.err)
	}
}

func TestToDomainError_KeepsExistingDomainError(t *testing.T) {
	original := NewForbidden("nope")
	wrapped := fmt.Errorf("handler: %w", original)

	got := ToDomainError(wrapped)
	assert.Same(t, original, got)
	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestDomainError_MessageNotDuplicated(t *testing.T) {
	err := fmt.Errorf("%w: stale", domain.ErrConcurrentModification)
	assert.Equal(t, err.Error(), ToDomainError(err).Error())
	assert.Equal(t, "internal server error: boom", NewInternalError(errors.New("boom")).Error())
}
