// Package activity maintains the append-only audit trail of domain
// events. The coordinators write it; only downstream feeds read it.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bookhive/internal/store"
)

// Event types recorded in the trail.
const (
	EventBorrow           = "borrow"
	EventReturn           = "return"
	EventBookingCreated   = "booking_created"
	EventBookingUpdated   = "booking_updated"
	EventBookingCancelled = "booking_cancelled"
)

// Entry is one immutable audit record.
type Entry struct {
	ID        uuid.UUID              `json:"id"`
	UserID    uuid.UUID              `json:"user_id"`
	EventType string                 `json:"event_type"`
	BookID    *uuid.UUID             `json:"book_id,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

// Record appends an entry to the trail within the caller's Queryer.
func Record(ctx context.Context, q store.Queryer, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal activity payload: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO activities (id, user_id, event_type, book_id, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.ID, entry.UserID, entry.EventType, entry.BookID, payloadJSON)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListByUser returns a user's activity feed, newest first.
func ListByUser(ctx context.Context, q store.Queryer, userID uuid.UUID, limit int) ([]Entry, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, event_type, book_id, payload, created_at
		FROM activities
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry       Entry
			payloadJSON []byte
		)
		err := rows.Scan(&entry.ID, &entry.UserID, &entry.EventType, &entry.BookID, &payloadJSON, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if len(payloadJSON) > 0 {
			json.Unmarshal(payloadJSON, &entry.Payload)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}

	return entries, nil
}
