// internal/booking/implementation.go
package booking

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
	"bookhive/internal/member"
	"bookhive/internal/store"
)

// service implements the Service interface. Availability for a table is
// derived from overlap, not a counter: the existence check runs inside
// the same transaction as the insert, and the store's exclusion
// constraint backstops the race.
type service struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewService creates a new booking coordinator instance.
func NewService(db *sql.DB) Service {
	return &service{
		db:     db,
		tracer: otel.Tracer("bookhive/booking"),
	}
}

// Create reserves a table for the window. Users may hold multiple
// bookings; only window overlap on the same table conflicts.
func (s *service) Create(ctx context.Context, userID uuid.UUID, params CreateParams) (*Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.create",
		trace.WithAttributes(
			attribute.String("user.id", userID.String()),
			attribute.String("table.name", params.TableName),
		),
	)
	defer span.End()

	if params.TableName == "" {
		return nil, apperr.Invalid("table_name is required")
	}
	window := Window{StartAt: params.StartAt.UTC(), EndAt: params.EndAt.UTC()}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if params.Attendees < 1 {
		params.Attendees = 1
	}

	booking := &Booking{
		ID:        uuid.New(),
		UserID:    userID,
		TableName: params.TableName,
		Window:    window,
		Purpose:   params.Purpose,
		Attendees: params.Attendees,
		Status:    StatusConfirmed,
		CreatedAt: time.Now().UTC(),
	}

	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		userSummary := &member.Summary{ID: userID}
		err := tx.QueryRowContext(ctx,
			`SELECT username, display_name FROM users WHERE id = $1`, userID).
			Scan(&userSummary.Username, &userSummary.DisplayName)
		if store.IsNoRows(err) {
			return apperr.NotFound("user %s", userID)
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}

		conflict, err := windowConflicts(ctx, tx, params.TableName, window, uuid.Nil)
		if err != nil {
			return err
		}
		if conflict {
			span.SetAttributes(attribute.Bool("conflict.overlap", true))
			return apperr.Conflict("table %s is already booked for this window", params.TableName)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO meeting_bookings (id, user_id, table_name, start_at, end_at, purpose, attendees, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, booking.ID, userID, booking.TableName, window.StartAt, window.EndAt,
			booking.Purpose, booking.Attendees, booking.Status, booking.CreatedAt)
		if err != nil {
			// The exclusion constraint backstops two overlapping inserts
			// racing past the existence check.
			return store.MapConstraint(err)
		}

		err = activity.Record(ctx, tx, activity.Entry{
			UserID:    userID,
			EventType: activity.EventBookingCreated,
			Payload: map[string]interface{}{
				"booking_id": booking.ID.String(),
				"table_name": booking.TableName,
				"start_at":   window.StartAt.Format(time.RFC3339),
				"end_at":     window.EndAt.Format(time.RFC3339),
			},
		})
		if err != nil {
			return err
		}

		booking.User = userSummary
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.AddEvent("booking.created", trace.WithAttributes(
		attribute.String("booking.id", booking.ID.String()),
	))
	return booking, nil
}

// Edit changes a booking's window or details. A new window is re-checked
// for overlap against all other non-cancelled bookings on the table; on
// rejection the stored window is unchanged.
func (s *service) Edit(ctx context.Context, bookingID, userID uuid.UUID, admin bool, params EditParams) (*Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.edit",
		trace.WithAttributes(attribute.String("booking.id", bookingID.String())),
	)
	defer span.End()

	var booking *Booking
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		booking, err = lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if booking.UserID != userID && !admin {
			return apperr.Forbidden("not the booking owner")
		}
		if booking.Status != StatusConfirmed {
			return apperr.Conflict("booking is cancelled")
		}

		window := booking.Window
		windowChanged := false
		if params.StartAt != nil {
			window.StartAt = params.StartAt.UTC()
			windowChanged = true
		}
		if params.EndAt != nil {
			window.EndAt = params.EndAt.UTC()
			windowChanged = true
		}
		if windowChanged {
			if err := window.Validate(); err != nil {
				return err
			}
			conflict, err := windowConflicts(ctx, tx, booking.TableName, window, bookingID)
			if err != nil {
				return err
			}
			if conflict {
				span.SetAttributes(attribute.Bool("conflict.overlap", true))
				return apperr.Conflict("table %s is already booked for this window", booking.TableName)
			}
		}
		if params.Purpose != nil {
			booking.Purpose = *params.Purpose
		}
		if params.Attendees != nil {
			if *params.Attendees < 1 {
				return apperr.Invalid("attendees must be at least 1")
			}
			booking.Attendees = *params.Attendees
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE meeting_bookings
			SET start_at = $1, end_at = $2, purpose = $3, attendees = $4, updated_at = NOW()
			WHERE id = $5
		`, window.StartAt, window.EndAt, booking.Purpose, booking.Attendees, bookingID)
		if err != nil {
			return store.MapConstraint(err)
		}
		booking.Window = window

		if windowChanged {
			err = activity.Record(ctx, tx, activity.Entry{
				UserID:    booking.UserID,
				EventType: activity.EventBookingUpdated,
				Payload: map[string]interface{}{
					"booking_id": booking.ID.String(),
					"start_at":   window.StartAt.Format(time.RFC3339),
					"end_at":     window.EndAt.Format(time.RFC3339),
				},
			})
			if err != nil {
				return err
			}
		}

		booking.User, err = loadUserSummary(ctx, tx, booking.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return booking, nil
}

// Cancel marks a booking cancelled, freeing its window.
func (s *service) Cancel(ctx context.Context, bookingID, userID uuid.UUID, admin bool) (*Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.cancel",
		trace.WithAttributes(attribute.String("booking.id", bookingID.String())),
	)
	defer span.End()

	var booking *Booking
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		booking, err = lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if booking.UserID != userID && !admin {
			return apperr.Forbidden("not the booking owner")
		}
		if booking.Status != StatusConfirmed {
			return apperr.Conflict("booking already cancelled")
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE meeting_bookings
			SET status = 'cancelled', updated_at = NOW()
			WHERE id = $1
		`, bookingID)
		if err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		booking.Status = StatusCancelled

		err = activity.Record(ctx, tx, activity.Entry{
			UserID:    booking.UserID,
			EventType: activity.EventBookingCancelled,
			Payload: map[string]interface{}{
				"booking_id": booking.ID.String(),
				"table_name": booking.TableName,
			},
		})
		if err != nil {
			return err
		}

		booking.User, err = loadUserSummary(ctx, tx, booking.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return booking, nil
}

// Remove hard-deletes a cancelled booking. The window was already freed
// at cancel time, so deletion has no availability side effects.
func (s *service) Remove(ctx context.Context, bookingID, userID uuid.UUID, admin bool) error {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.UserID != userID && !admin {
		return apperr.Forbidden("not the booking owner")
	}
	if booking.Status != StatusCancelled {
		return apperr.Conflict("only cancelled bookings can be deleted")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM meeting_bookings WHERE id = $1`, bookingID); err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return nil
}

// GetBooking retrieves one booking with its user summary.
func (s *service) GetBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	booking := &Booking{User: &member.Summary{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT mb.id, mb.user_id, mb.table_name, mb.start_at, mb.end_at,
		       mb.purpose, mb.attendees, mb.status, mb.created_at,
		       u.username, u.display_name
		FROM meeting_bookings mb
		JOIN users u ON u.id = mb.user_id
		WHERE mb.id = $1
	`, bookingID).Scan(
		&booking.ID, &booking.UserID, &booking.TableName,
		&booking.Window.StartAt, &booking.Window.EndAt,
		&booking.Purpose, &booking.Attendees, &booking.Status, &booking.CreatedAt,
		&booking.User.Username, &booking.User.DisplayName,
	)
	if store.IsNoRows(err) {
		return nil, apperr.NotFound("booking %s", bookingID)
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	booking.User.ID = booking.UserID
	return booking, nil
}

// ListBookings returns a page of bookings ordered by start time.
func (s *service) ListBookings(ctx context.Context, query ListQuery) ([]*Booking, int, error) {
	page, limit := clampPage(query.Page, query.Limit)

	ds := goqu.Dialect("postgres").
		From(goqu.T("meeting_bookings").As("mb")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.Ex{"u.id": goqu.I("mb.user_id")})).
		Select(
			goqu.I("mb.id"), goqu.I("mb.user_id"), goqu.I("mb.table_name"),
			goqu.I("mb.start_at"), goqu.I("mb.end_at"),
			goqu.I("mb.purpose"), goqu.I("mb.attendees"), goqu.I("mb.status"), goqu.I("mb.created_at"),
			goqu.I("u.username"), goqu.I("u.display_name"),
		).
		Order(goqu.I("mb.start_at").Asc()).
		Limit(uint(limit)).
		Offset(uint((page - 1) * limit))
	countDS := goqu.Dialect("postgres").From("meeting_bookings").Select(goqu.COUNT("*"))

	if query.UserID != nil {
		ds = ds.Where(goqu.Ex{"mb.user_id": *query.UserID})
		countDS = countDS.Where(goqu.Ex{"user_id": *query.UserID})
	}
	if query.TableName != "" {
		ds = ds.Where(goqu.Ex{"mb.table_name": query.TableName})
		countDS = countDS.Where(goqu.Ex{"table_name": query.TableName})
	}
	if query.Status != "" {
		ds = ds.Where(goqu.Ex{"mb.status": query.Status})
		countDS = countDS.Where(goqu.Ex{"status": query.Status})
	}

	sqlQuery, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build booking query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		booking := &Booking{User: &member.Summary{}}
		err := rows.Scan(
			&booking.ID, &booking.UserID, &booking.TableName,
			&booking.Window.StartAt, &booking.Window.EndAt,
			&booking.Purpose, &booking.Attendees, &booking.Status, &booking.CreatedAt,
			&booking.User.Username, &booking.User.DisplayName,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking: %w", err)
		}
		booking.User.ID = booking.UserID
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate bookings: %w", err)
	}

	countQuery, countArgs, err := countDS.Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build booking count query: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	return bookings, total, nil
}

// windowConflicts checks for a non-cancelled booking on the table whose
// half-open window overlaps the candidate, excluding excludeID when
// re-validating an edit. Must run inside the transaction that performs
// the subsequent write.
func windowConflicts(ctx context.Context, tx *sql.Tx, tableName string, window Window, excludeID uuid.UUID) (bool, error) {
	var conflict bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM meeting_bookings
			WHERE table_name = $1
			  AND status <> 'cancelled'
			  AND id <> $2
			  AND start_at < $4
			  AND end_at > $3
		)
	`, tableName, excludeID, window.StartAt, window.EndAt).Scan(&conflict)
	if err != nil {
		return false, fmt.Errorf("check window overlap: %w", err)
	}
	return conflict, nil
}

func lockBooking(ctx context.Context, tx *sql.Tx, bookingID uuid.UUID) (*Booking, error) {
	booking := &Booking{}
	err := tx.QueryRowContext(ctx, `
		SELECT id, user_id, table_name, start_at, end_at, purpose, attendees, status, created_at
		FROM meeting_bookings
		WHERE id = $1
		FOR UPDATE
	`, bookingID).Scan(
		&booking.ID, &booking.UserID, &booking.TableName,
		&booking.Window.StartAt, &booking.Window.EndAt,
		&booking.Purpose, &booking.Attendees, &booking.Status, &booking.CreatedAt,
	)
	if store.IsNoRows(err) {
		return nil, apperr.NotFound("booking %s", bookingID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock booking: %w", err)
	}
	return booking, nil
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

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}
