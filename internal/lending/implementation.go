// internal/lending/implementation.go
package lending

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bookhive/internal/activity"
	"bookhive/internal/apperr"
	"bookhive/internal/catalog"
	"bookhive/internal/member"
	"bookhive/internal/points"
	"bookhive/internal/store"
)

// service implements the Service interface. Every mutation runs as a
// single transaction spanning inventory, borrow ledger, user counters,
// point ledger and activity trail.
type service struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewService creates a new lending coordinator instance.
func NewService(db *sql.DB) Service {
	return &service{
		db:     db,
		tracer: otel.Tracer("bookhive/lending"),
	}
}

// Borrow reserves one copy of a book for the user. The availability
// decrement is conditional and its affected-row count gates the whole
// unit, so two borrowers racing on the last copy cannot both succeed.
func (s *service) Borrow(ctx context.Context, userID, bookID uuid.UUID, dueAt time.Time) (*Borrow, error) {
	ctx, span := s.tracer.Start(ctx, "lending.borrow",
		trace.WithAttributes(
			attribute.String("user.id", userID.String()),
			attribute.String("book.id", bookID.String()),
		),
	)
	defer span.End()

	if !dueAt.After(time.Now()) {
		return nil, apperr.Invalid("due date must be in the future")
	}

	borrow := &Borrow{
		ID:         uuid.New(),
		UserID:     userID,
		BookID:     bookID,
		BorrowedAt: time.Now().UTC(),
		DueAt:      dueAt.UTC(),
		Status:     StatusActive,
	}

	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		userSummary, err := lockUserSummary(ctx, tx, userID)
		if err != nil {
			return err
		}

		var alreadyBorrowed bool
		err = tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM borrows
				WHERE user_id = $1 AND book_id = $2 AND status = 'active'
			)
		`, userID, bookID).Scan(&alreadyBorrowed)
		if err != nil {
			return fmt.Errorf("check active borrow: %w", err)
		}
		if alreadyBorrowed {
			return apperr.Conflict("user already has an active borrow of this book")
		}

		// The decrement is the race-resolution mechanism: the condition
		// and the write are one statement, and zero affected rows aborts
		// the unit.
		result, err := tx.ExecContext(ctx, `
			UPDATE books
			SET available_copies = available_copies - 1,
			    borrow_count = borrow_count + 1,
			    updated_at = NOW()
			WHERE id = $1 AND available_copies > 0
		`, bookID)
		if err != nil {
			return store.MapConstraint(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("decrement availability: %w", err)
		}
		if affected == 0 {
			var bookExists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, bookID).Scan(&bookExists); err != nil {
				return fmt.Errorf("probe book: %w", err)
			}
			if !bookExists {
				return apperr.NotFound("book %s", bookID)
			}
			span.SetAttributes(attribute.Bool("conflict.no_copies", true))
			return apperr.Conflict("no available copies")
		}

		bookSummary := &catalog.Summary{ID: bookID}
		err = tx.QueryRowContext(ctx, `SELECT title, author FROM books WHERE id = $1`, bookID).
			Scan(&bookSummary.Title, &bookSummary.Author)
		if err != nil {
			return fmt.Errorf("load book summary: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO borrows (id, user_id, book_id, borrowed_at, due_at, status)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, borrow.ID, userID, bookID, borrow.BorrowedAt, borrow.DueAt, borrow.Status)
		if err != nil {
			// The partial unique index backstops the duplicate check when
			// two borrows of the same book race past it.
			return store.MapConstraint(err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE users
			SET total_borrowed = total_borrowed + 1,
			    activity_score = activity_score + $1,
			    updated_at = NOW()
			WHERE id = $2
		`, points.BorrowPoints, userID)
		if err != nil {
			return fmt.Errorf("update user counters: %w", err)
		}

		err = points.Record(ctx, tx, points.Transaction{
			UserID:  userID,
			Delta:   points.BorrowPoints,
			Reason:  points.ReasonBorrow,
			RefType: "borrow_id",
			RefID:   borrow.ID,
			Note:    "Borrowed a book",
		})
		if err != nil {
			return err
		}

		err = activity.Record(ctx, tx, activity.Entry{
			UserID:    userID,
			EventType: activity.EventBorrow,
			BookID:    &bookID,
			Payload: map[string]interface{}{
				"borrow_id": borrow.ID.String(),
				"due_at":    borrow.DueAt.Format(time.RFC3339),
			},
		})
		if err != nil {
			return err
		}

		borrow.User = userSummary
		borrow.Book = bookSummary
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.AddEvent("borrow.created", trace.WithAttributes(
		attribute.String("borrow.id", borrow.ID.String()),
	))
	return borrow, nil
}

// Return closes an active borrow, restores the copy to inventory and
// rewards or penalizes the user depending on lateness.
func (s *service) Return(ctx context.Context, borrowID, userID uuid.UUID, admin bool) (*Borrow, error) {
	ctx, span := s.tracer.Start(ctx, "lending.return",
		trace.WithAttributes(
			attribute.String("borrow.id", borrowID.String()),
			attribute.String("user.id", userID.String()),
		),
	)
	defer span.End()

	var borrow *Borrow
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		borrow, err = lockBorrow(ctx, tx, borrowID)
		if err != nil {
			return err
		}
		if borrow.UserID != userID && !admin {
			return apperr.Forbidden("not the borrow owner")
		}
		if borrow.Status != StatusActive {
			return apperr.Conflict("borrow already returned")
		}

		now := time.Now().UTC()
		delta, reason := returnReward(now, borrow.DueAt)
		late := now.After(borrow.DueAt)
		span.SetAttributes(attribute.Bool("return.late", late))

		result, err := tx.ExecContext(ctx, `
			UPDATE borrows
			SET status = 'returned', returned_at = $1
			WHERE id = $2 AND status = 'active'
		`, now, borrowID)
		if err != nil {
			return fmt.Errorf("close borrow: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("close borrow: %w", err)
		}
		if affected == 0 {
			return apperr.Conflict("borrow already returned")
		}

		result, err = tx.ExecContext(ctx, `
			UPDATE books
			SET available_copies = available_copies + 1, updated_at = NOW()
			WHERE id = $1 AND available_copies < total_copies
		`, borrow.BookID)
		if err != nil {
			return store.MapConstraint(err)
		}
		affected, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("restore availability: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("inventory restore for book %s affected no rows", borrow.BookID)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE users
			SET total_returned = total_returned + 1,
			    activity_score = activity_score + $1,
			    updated_at = NOW()
			WHERE id = $2
		`, delta, borrow.UserID)
		if err != nil {
			return fmt.Errorf("update user counters: %w", err)
		}

		note := "Returned on time"
		if late {
			note = "Returned late"
		}
		err = points.Record(ctx, tx, points.Transaction{
			UserID:  borrow.UserID,
			Delta:   delta,
			Reason:  reason,
			RefType: "borrow_id",
			RefID:   borrow.ID,
			Note:    note,
		})
		if err != nil {
			return err
		}

		err = activity.Record(ctx, tx, activity.Entry{
			UserID:    borrow.UserID,
			EventType: activity.EventReturn,
			BookID:    &borrow.BookID,
			Payload: map[string]interface{}{
				"borrow_id": borrow.ID.String(),
				"is_late":   late,
			},
		})
		if err != nil {
			return err
		}

		borrow.Status = StatusReturned
		borrow.ReturnedAt = &now

		borrow.User, err = loadUserSummary(ctx, tx, borrow.UserID)
		if err != nil {
			return err
		}
		borrow.Book, err = loadBookSummary(ctx, tx, borrow.BookID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return borrow, nil
}

// Remove hard-deletes a returned borrow record. Inventory was already
// restored at return time, so deletion has no side effects.
func (s *service) Remove(ctx context.Context, borrowID, userID uuid.UUID, admin bool) error {
	borrow, err := s.GetBorrow(ctx, borrowID, userID, admin)
	if err != nil {
		return err
	}
	if borrow.Status != StatusReturned {
		return apperr.Conflict("only returned borrows can be deleted")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM borrows WHERE id = $1`, borrowID); err != nil {
		return fmt.Errorf("delete borrow: %w", err)
	}
	return nil
}

// GetBorrow retrieves one borrow with its user and book summaries.
func (s *service) GetBorrow(ctx context.Context, borrowID, userID uuid.UUID, admin bool) (*Borrow, error) {
	borrow := &Borrow{
		User: &member.Summary{},
		Book: &catalog.Summary{},
	}
	var returnedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT b.id, b.user_id, b.book_id, b.borrowed_at, b.due_at, b.returned_at, b.status,
		       u.username, u.display_name, bk.title, bk.author
		FROM borrows b
		JOIN users u ON u.id = b.user_id
		JOIN books bk ON bk.id = b.book_id
		WHERE b.id = $1
	`, borrowID).Scan(
		&borrow.ID, &borrow.UserID, &borrow.BookID, &borrow.BorrowedAt, &borrow.DueAt,
		&returnedAt, &borrow.Status,
		&borrow.User.Username, &borrow.User.DisplayName,
		&borrow.Book.Title, &borrow.Book.Author,
	)
	if store.IsNoRows(err) {
		return nil, apperr.NotFound("borrow %s", borrowID)
	}
	if err != nil {
		return nil, fmt.Errorf("get borrow: %w", err)
	}

	if borrow.UserID != userID && !admin {
		return nil, apperr.Forbidden("not the borrow owner")
	}

	borrow.User.ID = borrow.UserID
	borrow.Book.ID = borrow.BookID
	if returnedAt.Valid {
		borrow.ReturnedAt = &returnedAt.Time
	}
	return borrow, nil
}

// ListBorrows returns a page of borrows, newest first.
func (s *service) ListBorrows(ctx context.Context, query ListQuery) ([]*Borrow, int, error) {
	page, limit := clampPage(query.Page, query.Limit)

	ds := goqu.Dialect("postgres").
		From(goqu.T("borrows").As("b")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.Ex{"u.id": goqu.I("b.user_id")})).
		Join(goqu.T("books").As("bk"), goqu.On(goqu.Ex{"bk.id": goqu.I("b.book_id")})).
		Select(
			goqu.I("b.id"), goqu.I("b.user_id"), goqu.I("b.book_id"),
			goqu.I("b.borrowed_at"), goqu.I("b.due_at"), goqu.I("b.returned_at"), goqu.I("b.status"),
			goqu.I("u.username"), goqu.I("u.display_name"),
			goqu.I("bk.title"), goqu.I("bk.author"),
		).
		Order(goqu.I("b.borrowed_at").Desc()).
		Limit(uint(limit)).
		Offset(uint((page - 1) * limit))
	countDS := goqu.Dialect("postgres").From("borrows").Select(goqu.COUNT("*"))

	if query.UserID != nil {
		ds = ds.Where(goqu.Ex{"b.user_id": *query.UserID})
		countDS = countDS.Where(goqu.Ex{"user_id": *query.UserID})
	}
	if query.Status != "" {
		ds = ds.Where(goqu.Ex{"b.status": query.Status})
		countDS = countDS.Where(goqu.Ex{"status": query.Status})
	}

	sqlQuery, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build borrow query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query borrows: %w", err)
	}
	defer rows.Close()

	var borrows []*Borrow
	for rows.Next() {
		borrow := &Borrow{User: &member.Summary{}, Book: &catalog.Summary{}}
		var returnedAt sql.NullTime
		err := rows.Scan(
			&borrow.ID, &borrow.UserID, &borrow.BookID, &borrow.BorrowedAt, &borrow.DueAt,
			&returnedAt, &borrow.Status,
			&borrow.User.Username, &borrow.User.DisplayName,
			&borrow.Book.Title, &borrow.Book.Author,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan borrow: %w", err)
		}
		borrow.User.ID = borrow.UserID
		borrow.Book.ID = borrow.BookID
		if returnedAt.Valid {
			borrow.ReturnedAt = &returnedAt.Time
		}
		borrows = append(borrows, borrow)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate borrows: %w", err)
	}

	countQuery, countArgs, err := countDS.Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build borrow count query: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count borrows: %w", err)
	}

	return borrows, total, nil
}

func lockBorrow(ctx context.Context, tx *sql.Tx, borrowID uuid.UUID) (*Borrow, error) {
	borrow := &Borrow{}
	var returnedAt sql.NullTime
	err := tx.QueryRowContext(ctx, `
		SELECT id, user_id, book_id, borrowed_at, due_at, returned_at, status
		FROM borrows
		WHERE id = $1
		FOR UPDATE
	`, borrowID).Scan(
		&borrow.ID, &borrow.UserID, &borrow.BookID,
		&borrow.BorrowedAt, &borrow.DueAt, &returnedAt, &borrow.Status,
	)
	if store.IsNoRows(err) {
		return nil, apperr.NotFound("borrow %s", borrowID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock borrow: %w", err)
	}
	if returnedAt.Valid {
		borrow.ReturnedAt = &returnedAt.Time
	}
	return borrow, nil
}

func lockUserSummary(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*member.Summary, error) {
	summary := &member.Summary{ID: userID}
	err := tx.QueryRowContext(ctx,
		`SELECT username, display_name FROM users WHERE id = $1 FOR UPDATE`, userID).
		Scan(&summary.Username, &summary.DisplayName)
	if store.IsNoRows(err) {
		return nil, apperr.NotFound("user %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return summary, nil
}

func loadUserSummary(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*member.Summary, error) {
	summary := &member.Summary{ID: userID}
	err := tx.QueryRowContext(ctx,
		`SELECT username, display_name FROM users WHERE id = $1`, userID).
		Scan(&summary.Username, &summary.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("load user summary: %w", err)
	}
	return summary, nil
}

func loadBookSummary(ctx context.Context, tx *sql.Tx, bookID uuid.UUID) (*catalog.Summary, error) {
	summary := &catalog.Summary{ID: bookID}
	err := tx.QueryRowContext(ctx,
		`SELECT title, author FROM books WHERE id = $1`, bookID).
		Scan(&summary.Title, &summary.Author)
	if err != nil {
		return nil, fmt.Errorf("load book summary: %w", err)
	}
	return summary, nil
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
