// internal/notify/handler.go
package notify

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"bookhive/internal/apperr"
	"bookhive/internal/auth"
	"bookhive/internal/member"
)

type Handler struct {
	db      *sql.DB
	members member.Service
}

func NewHandler(db *sql.DB, members member.Service) *Handler {
	return &Handler{db: db, members: members}
}

// HandleUpdateFCMToken stores the caller's push token.
func (h *Handler) HandleUpdateFCMToken(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req struct {
		FCMToken      string `json:"fcm_token"`
		IsPushEnabled *bool  `json:"is_push_enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.members.UpdateFCMToken(r.Context(), identity.UserID, req.FCMToken, req.IsPushEnabled)
	if err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	json.NewEncoder(w).Encode(user)
}

// HandleList returns the caller's notification history, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT id, user_id, borrow_id, title, body, status, retry_count,
		       COALESCE(error_message, ''), sent_at, created_at
		FROM notification_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 50
	`, identity.UserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	var logs []Log
	for rows.Next() {
		var (
			entry  Log
			sentAt sql.NullTime
		)
		err := rows.Scan(&entry.ID, &entry.UserID, &entry.BorrowID, &entry.Title, &entry.Body,
			&entry.Status, &entry.RetryCount, &entry.ErrorMessage, &sentAt, &entry.CreatedAt)
		if err != nil {
			http.Error(w, fmt.Sprintf("scan notification log: %v", err), http.StatusInternalServerError)
			return
		}
		if sentAt.Valid {
			entry.SentAt = &sentAt.Time
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(logs)
}
