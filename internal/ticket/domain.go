// internal/ticket/domain.go
package ticket

import (
	"time"

	"github.com/google/uuid"

	"bookhive/internal/apperr"
	"bookhive/internal/member"
)

// Ticket types.
const (
	TypeBorrowBook       = "borrow_book"
	TypeReturnBook       = "return_book"
	TypeRoomBooking      = "room_booking"
	TypeRoomCancellation = "room_cancellation"
)

// Ticket statuses. Pending tickets transition exactly once to approved
// or rejected; both are terminal.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Ticket is one approval-workflow item raised by a user and reviewed by
// an admin.
type Ticket struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	BookID     *uuid.UUID      `json:"book_id,omitempty"`
	BookingID  *uuid.UUID      `json:"booking_id,omitempty"`
	Note       string          `json:"note,omitempty"`
	ReviewerID *uuid.UUID      `json:"reviewer_id,omitempty"`
	ReviewedAt *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	User       *member.Summary `json:"user,omitempty"`
}

// CreateParams carries the fields accepted when raising a ticket.
type CreateParams struct {
	Type      string     `json:"type"`
	BookID    *uuid.UUID `json:"book_id"`
	BookingID *uuid.UUID `json:"booking_id"`
	Note      string     `json:"note"`
}

// ListQuery filters the paginated ticket listing. Category groups types:
// "book" covers borrow/return tickets, "room" covers booking tickets.
type ListQuery struct {
	UserID   *uuid.UUID
	Type     string
	Category string
	Status   string
	Page     int
	Limit    int
}

func validType(t string) bool {
	switch t {
	case TypeBorrowBook, TypeReturnBook, TypeRoomBooking, TypeRoomCancellation:
		return true
	}
	return false
}

// validateTransition enforces the pending → approved|rejected state
// machine.
func validateTransition(current, next string) error {
	if current != StatusPending {
		return apperr.Conflict("ticket already %s", current)
	}
	if next != StatusApproved && next != StatusRejected {
		return apperr.Invalid("unknown ticket status %q", next)
	}
	return nil
}
