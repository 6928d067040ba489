// internal/points/handler.go
package points

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"bookhive/internal/auth"
)

type Handler struct {
	db *sql.DB
}

func NewHandler(db *sql.DB) *Handler {
	return &Handler{db: db}
}

// HandleMine returns the caller's point history and recomputed balance.
func (h *Handler) HandleMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txs, err := ListByUser(r.Context(), h.db, identity.UserID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	balance, err := Balance(r.Context(), h.db, identity.UserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(struct {
		Balance      int           `json:"balance"`
		Transactions []Transaction `json:"transactions"`
	}{balance, txs})
}
