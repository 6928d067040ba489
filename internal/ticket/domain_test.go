package ticket

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"bookhive/internal/apperr"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		current string
		next    string
		wantErr error
	}{
		{"pending to approved", StatusPending, StatusApproved, nil},
		{"pending to rejected", StatusPending, StatusRejected, nil},
		{"approved is terminal", StatusApproved, StatusRejected, apperr.ErrConflict},
		{"rejected is terminal", StatusRejected, StatusApproved, apperr.ErrConflict},
		{"pending to pending", StatusPending, StatusPending, apperr.ErrInvalid},
		{"pending to unknown", StatusPending, "closed", apperr.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTransition(tt.current, tt.next)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestValidType(t *testing.T) {
	for _, typ := range []string{TypeBorrowBook, TypeReturnBook, TypeRoomBooking, TypeRoomCancellation} {
		assert.True(t, validType(typ), typ)
	}
	assert.False(t, validType("unknown"))
	assert.False(t, validType(""))
}
