// Package points maintains the append-only point ledger. Entries are
// immutable once created; a user's score is the sum of their deltas.
package points

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bookhive/internal/store"
)

// Reasons for a point delta.
const (
	ReasonBorrow       = "borrow"
	ReasonReturnOnTime = "return_on_time"
	ReasonReturnLate   = "return_late"
)

// Accrual amounts. Fixed constants, matching the reward policy the
// product shipped with.
const (
	BorrowPoints       = 10
	ReturnOnTimePoints = 5
	ReturnLatePoints   = -5
)

// Transaction is one signed point delta attributed to a ledger event.
type Transaction struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	RefType   string    `json:"ref_type"`
	RefID     uuid.UUID `json:"ref_id"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// Record appends a point transaction. It runs against whatever Queryer
// the caller holds, so coordinators can include it in their atomic unit.
func Record(ctx context.Context, q store.Queryer, tx Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO point_transactions (id, user_id, delta, reason, ref_type, ref_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, tx.ID, tx.UserID, tx.Delta, tx.Reason, tx.RefType, tx.RefID, tx.Note)
	if err != nil {
		return fmt.Errorf("insert point transaction: %w", err)
	}
	return nil
}

// Balance recomputes a user's score from the ledger.
func Balance(ctx context.Context, q store.Queryer, userID uuid.UUID) (int, error) {
	var balance int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(delta), 0) FROM point_transactions WHERE user_id = $1`, userID).
		Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("sum point deltas: %w", err)
	}
	return balance, nil
}

// ListByUser returns a user's point history, newest first.
func ListByUser(ctx context.Context, q store.Queryer, userID uuid.UUID, limit int) ([]Transaction, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, delta, reason, ref_type, ref_id, note, created_at
		FROM point_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query point transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		err := rows.Scan(&tx.ID, &tx.UserID, &tx.Delta, &tx.Reason, &tx.RefType, &tx.RefID, &tx.Note, &tx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan point transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate point transactions: %w", err)
	}

	return txs, nil
}
