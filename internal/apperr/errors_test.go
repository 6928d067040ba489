package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", NotFound("book %s", "abc"), http.StatusNotFound},
		{"conflict", Conflict("no available copies"), http.StatusConflict},
		{"forbidden", Forbidden("not the owner"), http.StatusForbidden},
		{"invalid", Invalid("end_at must be after start_at"), http.StatusBadRequest},
		{"unclassified", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestWrappingPreservesSentinel(t *testing.T) {
	err := Conflict("table %s is already booked", "A1")
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Contains(t, err.Error(), "table A1 is already booked")

	// Another layer of wrapping must still classify.
	wrapped := fmt.Errorf("create booking: %w", err)
	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.Equal(t, http.StatusConflict, Status(wrapped))
}
