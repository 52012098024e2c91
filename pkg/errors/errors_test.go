package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOfWrappedError(t *testing.T) {
	err := fmt.Errorf("failed to reserve slot: %w", NewConflict("slot already reserved", nil))

	assert.Equal(t, ErrConflict, CodeOf(err))
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrInternal, CodeOf(fmt.Errorf("boom")))
	assert.False(t, IsNotFound(nil))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrNotFound:            http.StatusNotFound,
		ErrInvalidArgument:     http.StatusBadRequest,
		ErrConflict:            http.StatusConflict,
		ErrUpstreamUnavailable: http.StatusServiceUnavailable,
		ErrUnauthorized:        http.StatusUnauthorized,
		ErrInternal:            http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, code.HTTPStatus())
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	err := NewNotFound("booking", sql.ErrNoRows)

	assert.True(t, Is(err, sql.ErrNoRows))
	assert.Equal(t, "booking not found: sql: no rows in result set", err.Error())
}
