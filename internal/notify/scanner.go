// internal/notify/scanner.go
package notify

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	batchSize  = 50
	maxRetries = 3
	batchPause = 1 * time.Second
)

// Scanner finds active borrows approaching their due date and pushes
// reminders at the 3, 1 and 0 days-until-due marks. It reads borrow
// rows without locking and never mutates them.
type Scanner struct {
	db     *sql.DB
	sender Sender
	tracer trace.Tracer
}

// NewScanner creates a reminder scanner.
func NewScanner(db *sql.DB, sender Sender) *Scanner {
	return &Scanner{
		db:     db,
		sender: sender,
		tracer: otel.Tracer("bookhive/notify"),
	}
}

// Run executes one reminder sweep.
func (s *Scanner) Run(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "notify.sweep")
	defer span.End()

	reminders, err := s.dueReminders(ctx, time.Now())
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("reminders.found", len(reminders)))

	if len(reminders) == 0 {
		log.Printf("no borrows due for reminders")
		return nil
	}

	log.Printf("sending %d reminders in batches of %d", len(reminders), batchSize)
	for i := 0; i < len(reminders); i += batchSize {
		end := i + batchSize
		if end > len(reminders) {
			end = len(reminders)
		}
		s.processBatch(ctx, reminders[i:end])

		if end < len(reminders) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(batchPause):
			}
		}
	}

	return nil
}

// dueReminders reads the active borrows whose due date lands exactly on
// a reminder mark, for users who can receive push.
func (s *Scanner) dueReminders(ctx context.Context, now time.Time) ([]reminder, error) {
	today := now.UTC().Truncate(24 * time.Hour)
	horizon := today.Add(4 * 24 * time.Hour)

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.due_at, u.fcm_token, bk.id, bk.title
		FROM borrows b
		JOIN users u ON u.id = b.user_id
		JOIN books bk ON bk.id = b.book_id
		WHERE b.status = 'active'
		  AND u.is_push_enabled
		  AND u.fcm_token IS NOT NULL
		  AND b.due_at >= $1
		  AND b.due_at < $2
	`, today, horizon)
	if err != nil {
		return nil, fmt.Errorf("query due borrows: %w", err)
	}
	defer rows.Close()

	var reminders []reminder
	for rows.Next() {
		var r reminder
		if err := rows.Scan(&r.BorrowID, &r.UserID, &r.DueAt, &r.FCMToken, &r.BookID, &r.BookTitle); err != nil {
			return nil, fmt.Errorf("scan due borrow: %w", err)
		}

		dueDay := r.DueAt.UTC().Truncate(24 * time.Hour)
		r.DaysUntilDue = int(dueDay.Sub(today) / (24 * time.Hour))

		// Only the 3, 1 and 0 day marks get a reminder.
		if r.DaysUntilDue == 3 || r.DaysUntilDue == 1 || r.DaysUntilDue == 0 {
			reminders = append(reminders, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due borrows: %w", err)
	}

	return reminders, nil
}

func (s *Scanner) processBatch(ctx context.Context, batch []reminder) {
	var wg sync.WaitGroup
	for _, r := range batch {
		wg.Add(1)
		go func(r reminder) {
			defer wg.Done()
			if err := s.sendReminder(ctx, r); err != nil {
				log.Printf("reminder for borrow %s failed: %v", r.BorrowID, err)
			}
		}(r)
	}
	wg.Wait()
}

// sendReminder logs the attempt, delivers with bounded exponential
// backoff, and records the outcome. Delivery failures never touch
// borrow state.
func (s *Scanner) sendReminder(ctx context.Context, r reminder) error {
	title, body := reminderContent(r.BookTitle, r.DaysUntilDue)

	logID := uuid.New()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_logs (id, user_id, borrow_id, title, body, fcm_token, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
	`, logID, r.UserID, r.BorrowID, title, body, r.FCMToken)
	if err != nil {
		return fmt.Errorf("insert notification log: %w", err)
	}

	attempts := 0
	operation := func() (struct{}, error) {
		attempts++
		err := s.sender.Send(ctx, r.FCMToken, title, body, map[string]string{
			"borrow_id":      r.BorrowID.String(),
			"book_id":        r.BookID.String(),
			"days_until_due": fmt.Sprintf("%d", r.DaysUntilDue),
		})
		return struct{}{}, err
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 2 * time.Second

	_, sendErr := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(maxRetries),
	)

	if sendErr != nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE notification_logs
			SET status = 'failed', retry_count = $1, error_message = $2
			WHERE id = $3
		`, attempts, sendErr.Error(), logID)
		if err != nil {
			return fmt.Errorf("mark notification failed: %w", err)
		}
		return sendErr
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE notification_logs
		SET status = 'sent', retry_count = $1, sent_at = NOW()
		WHERE id = $2
	`, attempts-1, logID)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}
