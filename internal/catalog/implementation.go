// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bookhive/internal/apperr"
	"bookhive/internal/store"
)

const bookColumns = `
	id, isbn, title, author, COALESCE(cover_url, ''),
	total_copies, available_copies, borrow_count, created_at, updated_at
`

// service implements the Service interface.
type service struct {
	db *sql.DB
}

// NewService creates a new catalog service instance.
func NewService(db *sql.DB) Service {
	return &service{db: db}
}

// AddBook creates a new book with all copies available.
func (s *service) AddBook(ctx context.Context, params CreateParams) (*Book, error) {
	if params.Title == "" || params.Author == "" {
		return nil, apperr.Invalid("title and author are required")
	}
	if params.TotalCopies < 1 {
		return nil, apperr.Invalid("total_copies must be at least 1")
	}

	book := &Book{
		ID:              uuid.New(),
		ISBN:            params.ISBN,
		Title:           params.Title,
		Author:          params.Author,
		CoverURL:        params.CoverURL,
		TotalCopies:     params.TotalCopies,
		AvailableCopies: params.TotalCopies,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}

	query := `
		INSERT INTO books (id, isbn, title, author, cover_url, total_copies, available_copies, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		book.ID, book.ISBN, book.Title, book.Author, book.CoverURL,
		book.TotalCopies, book.AvailableCopies, book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert book: %w", err)
	}

	return book, nil
}

// GetBook retrieves a book from the catalog by its ID.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	book, err := scanBook(row)
	if store.IsNoRows(err) {
		return nil, apperr.NotFound("book %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return book, nil
}

// UpdateBook updates a book's metadata and, when total_copies changes,
// adjusts available copies by the same amount so outstanding loans are
// preserved. The check constraint rejects shrinking below the number of
// copies currently on loan.
func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, params UpdateParams) (*Book, error) {
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1 FOR UPDATE`, id)
		book, err := scanBook(row)
		if store.IsNoRows(err) {
			return apperr.NotFound("book %s", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get book: %w", err)
		}

		if params.Title != nil {
			book.Title = *params.Title
		}
		if params.Author != nil {
			book.Author = *params.Author
		}
		if params.CoverURL != nil {
			book.CoverURL = *params.CoverURL
		}
		delta := 0
		if params.TotalCopies != nil {
			if *params.TotalCopies < 1 {
				return apperr.Invalid("total_copies must be at least 1")
			}
			delta = *params.TotalCopies - book.TotalCopies
			book.TotalCopies = *params.TotalCopies
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE books
			SET title = $1, author = $2, cover_url = NULLIF($3, ''),
			    total_copies = $4, available_copies = available_copies + $5, updated_at = NOW()
			WHERE id = $6
		`, book.Title, book.Author, book.CoverURL, book.TotalCopies, delta, id)
		if err != nil {
			return store.MapConstraint(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetBook(ctx, id)
}

// RemoveBook deletes a book that has no copies on loan.
func (s *service) RemoveBook(ctx context.Context, id uuid.UUID) error {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return err
	}
	if book.AvailableCopies < book.TotalCopies {
		return apperr.Conflict("book has copies on loan")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

// Search finds books in the catalog via full-text search.
func (s *service) Search(ctx context.Context, query string) ([]*Book, error) {
	dbQuery := `
		SELECT ` + bookColumns + `
		FROM books
		WHERE to_tsvector('english', title || ' ' || author) @@ plainto_tsquery('english', $1)
		LIMIT 20
	`
	rows, err := s.db.QueryContext(ctx, dbQuery, query)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}

	return books, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBook(row rowScanner) (*Book, error) {
	book := &Book{}
	err := row.Scan(
		&book.ID,
		&book.ISBN,
		&book.Title,
		&book.Author,
		&book.CoverURL,
		&book.TotalCopies,
		&book.AvailableCopies,
		&book.BorrowCount,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return book, nil
}
