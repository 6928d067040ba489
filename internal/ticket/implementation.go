// internal/ticket/implementation.go
package ticket

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/google/uuid"

	"bookhive/internal/apperr"
	"bookhive/internal/member"
	"bookhive/internal/store"
)

// service implements the Service interface.
type service struct {
	db *sql.DB
}

// NewService creates a new ticket service instance.
func NewService(db *sql.DB) Service {
	return &service{db: db}
}

// Create raises a pending ticket.
func (s *service) Create(ctx context.Context, userID uuid.UUID, params CreateParams) (*Ticket, error) {
	if !validType(params.Type) {
		return nil, apperr.Invalid("unknown ticket type %q", params.Type)
	}

	ticket := &Ticket{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      params.Type,
		Status:    StatusPending,
		BookID:    params.BookID,
		BookingID: params.BookingID,
		Note:      params.Note,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (id, user_id, type, status, book_id, booking_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
	`, ticket.ID, userID, ticket.Type, ticket.Status, ticket.BookID, ticket.BookingID, ticket.Note, ticket.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}

	return ticket, nil
}

// GetTicket retrieves one ticket; non-admins can only read their own.
func (s *service) GetTicket(ctx context.Context, ticketID, userID uuid.UUID, admin bool) (*Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != userID && !admin {
		return nil, apperr.Forbidden("not the ticket owner")
	}
	return ticket, nil
}

// ListTickets returns a page of tickets, newest first.
func (s *service) ListTickets(ctx context.Context, query ListQuery) ([]*Ticket, int, error) {
	page, limit := clampPage(query.Page, query.Limit)

	ds := goqu.Dialect("postgres").
		From(goqu.T("tickets").As("t")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.Ex{"u.id": goqu.I("t.user_id")})).
		Select(
			goqu.I("t.id"), goqu.I("t.user_id"), goqu.I("t.type"), goqu.I("t.status"),
			goqu.I("t.book_id"), goqu.I("t.booking_id"), goqu.L("COALESCE(t.note, '')"),
			goqu.I("t.reviewer_id"), goqu.I("t.reviewed_at"), goqu.I("t.created_at"),
			goqu.I("u.username"), goqu.I("u.display_name"),
		).
		Order(goqu.I("t.created_at").Desc()).
		Limit(uint(limit)).
		Offset(uint((page - 1) * limit))
	countDS := goqu.Dialect("postgres").From("tickets").Select(goqu.COUNT("*"))

	if query.UserID != nil {
		ds = ds.Where(goqu.Ex{"t.user_id": *query.UserID})
		countDS = countDS.Where(goqu.Ex{"user_id": *query.UserID})
	}
	// Category groups ticket types and wins over an explicit type filter.
	switch query.Category {
	case "book":
		types := []string{TypeBorrowBook, TypeReturnBook}
		ds = ds.Where(goqu.Ex{"t.type": types})
		countDS = countDS.Where(goqu.Ex{"type": types})
	case "room":
		types := []string{TypeRoomBooking, TypeRoomCancellation}
		ds = ds.Where(goqu.Ex{"t.type": types})
		countDS = countDS.Where(goqu.Ex{"type": types})
	default:
		if query.Type != "" {
			ds = ds.Where(goqu.Ex{"t.type": query.Type})
			countDS = countDS.Where(goqu.Ex{"type": query.Type})
		}
	}
	if query.Status != "" {
		ds = ds.Where(goqu.Ex{"t.status": query.Status})
		countDS = countDS.Where(goqu.Ex{"status": query.Status})
	}

	sqlQuery, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build ticket query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*Ticket
	for rows.Next() {
		ticket := &Ticket{User: &member.Summary{}}
		var reviewedAt sql.NullTime
		err := rows.Scan(
			&ticket.ID, &ticket.UserID, &ticket.Type, &ticket.Status,
			&ticket.BookID, &ticket.BookingID, &ticket.Note,
			&ticket.ReviewerID, &reviewedAt, &ticket.CreatedAt,
			&ticket.User.Username, &ticket.User.DisplayName,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ticket: %w", err)
		}
		ticket.User.ID = ticket.UserID
		if reviewedAt.Valid {
			ticket.ReviewedAt = &reviewedAt.Time
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tickets: %w", err)
	}

	countQuery, countArgs, err := countDS.Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build ticket count query: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}

	return tickets, total, nil
}

// Review transitions a pending ticket to approved or rejected, stamping
// the reviewer. The conditional update gates against concurrent reviews.
func (s *service) Review(ctx context.Context, ticketID, reviewerID uuid.UUID, status string) (*Ticket, error) {
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM tickets WHERE id = $1 FOR UPDATE`, ticketID).Scan(&current)
		if store.IsNoRows(err) {
			return apperr.NotFound("ticket %s", ticketID)
		}
		if err != nil {
			return fmt.Errorf("lock ticket: %w", err)
		}

		if err := validateTransition(current, status); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE tickets
			SET status = $1, reviewer_id = $2, reviewed_at = NOW(), updated_at = NOW()
			WHERE id = $3 AND status = 'pending'
		`, status, reviewerID, ticketID)
		if err != nil {
			return fmt.Errorf("review ticket: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("review ticket: %w", err)
		}
		if affected == 0 {
			return apperr.Conflict("ticket already reviewed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadTicket(ctx, ticketID)
}

// Delete removes a ticket. Owners may delete while still pending; admins
// may delete any terminal ticket as cleanup.
func (s *service) Delete(ctx context.Context, ticketID, userID uuid.UUID, admin bool) error {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.UserID != userID && !admin {
		return apperr.Forbidden("not the ticket owner")
	}
	if !admin && ticket.Status != StatusPending {
		return apperr.Conflict("only pending tickets can be deleted")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = $1`, ticketID); err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	return nil
}

func (s *service) loadTicket(ctx context.Context, ticketID uuid.UUID) (*Ticket, error) {
	ticket := &Ticket{User: &member.Summary{}}
	var reviewedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.user_id, t.type, t.status, t.book_id, t.booking_id, COALESCE(t.note, ''),
		       t.reviewer_id, t.reviewed_at, t.created_at,
		       u.username, u.display_name
		FROM tickets t
		JOIN users u ON u.id = t.user_id
		WHERE t.id = $1
	`, ticketID).Scan(
		&ticket.ID, &ticket.UserID, &ticket.Type, &ticket.Status,
		&ticket.BookID, &ticket.BookingID, &ticket.Note,
		&ticket.ReviewerID, &reviewedAt, &ticket.CreatedAt,
		&ticket.User.Username, &ticket.User.DisplayName,
	)
	if store.IsNoRows(err) {
		return nil, apperr.NotFound("ticket %s", ticketID)
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	ticket.User.ID = ticket.UserID
	if reviewedAt.Valid {
		ticket.ReviewedAt = &reviewedAt.Time
	}
	return ticket, nil
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}
