// internal/booking/service.go
package booking

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the booking coordinator.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, params CreateParams) (*Booking, error)
	Edit(ctx context.Context, bookingID, userID uuid.UUID, admin bool, params EditParams) (*Booking, error)
	Cancel(ctx context.Context, bookingID, userID uuid.UUID, admin bool) (*Booking, error)
	Remove(ctx context.Context, bookingID, userID uuid.UUID, admin bool) error
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error)
	ListBookings(ctx context.Context, query ListQuery) ([]*Booking, int, error)
}
