// internal/notify/domain.go
package notify

import (
	"time"

	"github.com/google/uuid"
)

// Notification log statuses.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Log records one delivery attempt chain for a reminder.
type Log struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	BorrowID     *uuid.UUID `json:"borrow_id,omitempty"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	Status       string     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// reminder is the read contract with the lending ledger: the scanner
// reads these tuples and never writes reservation state.
type reminder struct {
	BorrowID     uuid.UUID
	UserID       uuid.UUID
	DueAt        time.Time
	FCMToken     string
	BookID       uuid.UUID
	BookTitle    string
	DaysUntilDue int
}
