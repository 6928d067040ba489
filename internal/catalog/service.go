// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, params CreateParams) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, params UpdateParams) (*Book, error)
	RemoveBook(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string) ([]*Book, error)
}
