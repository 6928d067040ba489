// internal/ticket/service.go
package ticket

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the ticket service.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, params CreateParams) (*Ticket, error)
	GetTicket(ctx context.Context, ticketID, userID uuid.UUID, admin bool) (*Ticket, error)
	ListTickets(ctx context.Context, query ListQuery) ([]*Ticket, int, error)
	Review(ctx context.Context, ticketID, reviewerID uuid.UUID, status string) (*Ticket, error)
	Delete(ctx context.Context, ticketID, userID uuid.UUID, admin bool) error
}
