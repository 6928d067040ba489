// internal/booking/domain.go
package booking

import (
	"time"

	"github.com/google/uuid"

	"bookhive/internal/apperr"
	"bookhive/internal/member"
)

// Booking lifecycle. A booking is created confirmed, may have its window
// edited while confirmed, and transitions exactly once to cancelled;
// cancelled is terminal.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Window is a half-open time interval [StartAt, EndAt). Back-to-back
// windows on the same table do not overlap.
type Window struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// Validate checks the interval is well-formed.
func (w Window) Validate() error {
	if w.StartAt.IsZero() || w.EndAt.IsZero() {
		return apperr.Invalid("start_at and end_at are required")
	}
	if !w.EndAt.After(w.StartAt) {
		return apperr.Invalid("end_at must be after start_at")
	}
	return nil
}

// Overlaps reports whether two half-open intervals share any instant.
func (w Window) Overlaps(other Window) bool {
	return w.StartAt.Before(other.EndAt) && other.StartAt.Before(w.EndAt)
}

// Booking represents one reservation of a meeting table for a time
// window.
type Booking struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	TableName string          `json:"table_name"`
	Window    Window          `json:"window"`
	Purpose   string          `json:"purpose,omitempty"`
	Attendees int             `json:"attendees"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	User      *member.Summary `json:"user,omitempty"`
}

// CreateParams carries the fields accepted when creating a booking.
type CreateParams struct {
	TableName string    `json:"table_name"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Purpose   string    `json:"purpose"`
	Attendees int       `json:"attendees"`
}

// EditParams carries the mutable booking fields. Nil means unchanged;
// changing either bound re-validates the whole window for overlap.
type EditParams struct {
	StartAt   *time.Time `json:"start_at"`
	EndAt     *time.Time `json:"end_at"`
	Purpose   *string    `json:"purpose"`
	Attendees *int       `json:"attendees"`
}

// ListQuery filters the paginated booking listing.
type ListQuery struct {
	UserID    *uuid.UUID
	TableName string
	Status    string
	Page      int
	Limit     int
}
