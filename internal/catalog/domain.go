// internal/catalog/domain.go
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Book represents a title in the catalog and its copy inventory.
// AvailableCopies is mutated only by the lending coordinator; this
// package exposes it read-only apart from admin restocking.
type Book struct {
	ID              uuid.UUID `json:"id"`
	ISBN            string    `json:"isbn"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	CoverURL        string    `json:"cover_url,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	BorrowCount     int       `json:"borrow_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Summary is the denormalized view attached to lending responses.
type Summary struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	Author string    `json:"author"`
}

// CreateParams carries the fields accepted when adding a book.
type CreateParams struct {
	ISBN        string `json:"isbn"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	CoverURL    string `json:"cover_url"`
	TotalCopies int    `json:"total_copies"`
}

// UpdateParams carries the mutable book fields. Nil means unchanged.
type UpdateParams struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	CoverURL    *string `json:"cover_url"`
	TotalCopies *int    `json:"total_copies"`
}
