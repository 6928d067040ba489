// internal/lending/domain.go
package lending

import (
	"time"

	"github.com/google/uuid"

	"bookhive/internal/catalog"
	"bookhive/internal/member"
	"bookhive/internal/points"
)

// Borrow lifecycle. A borrow is created active and transitions exactly
// once to returned; returned is terminal.
const (
	StatusActive   = "active"
	StatusReturned = "returned"
)

// Borrow represents one loan of a book copy to a user.
type Borrow struct {
	ID         uuid.UUID        `json:"id"`
	UserID     uuid.UUID        `json:"user_id"`
	BookID     uuid.UUID        `json:"book_id"`
	BorrowedAt time.Time        `json:"borrowed_at"`
	DueAt      time.Time        `json:"due_at"`
	ReturnedAt *time.Time       `json:"returned_at,omitempty"`
	Status     string           `json:"status"`
	User       *member.Summary  `json:"user,omitempty"`
	Book       *catalog.Summary `json:"book,omitempty"`
}

// IsLate reports whether the borrow was (or would be) returned after its
// due date.
func (b *Borrow) IsLate(at time.Time) bool {
	return at.After(b.DueAt)
}

// returnReward computes the point delta and reason for a return.
func returnReward(returnedAt, dueAt time.Time) (int, string) {
	if returnedAt.After(dueAt) {
		return points.ReturnLatePoints, points.ReasonReturnLate
	}
	return points.ReturnOnTimePoints, points.ReasonReturnOnTime
}

// ListQuery filters the paginated borrow listing. A nil UserID lists all
// users' borrows (admin scope).
type ListQuery struct {
	UserID *uuid.UUID
	Status string
	Page   int
	Limit  int
}
