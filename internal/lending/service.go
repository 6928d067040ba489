// internal/lending/service.go
package lending

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service defines the interface for the lending coordinator.
type Service interface {
	Borrow(ctx context.Context, userID, bookID uuid.UUID, dueAt time.Time) (*Borrow, error)
	Return(ctx context.Context, borrowID, userID uuid.UUID, admin bool) (*Borrow, error)
	Remove(ctx context.Context, borrowID, userID uuid.UUID, admin bool) error
	GetBorrow(ctx context.Context, borrowID, userID uuid.UUID, admin bool) (*Borrow, error)
	ListBorrows(ctx context.Context, query ListQuery) ([]*Borrow, int, error)
}
