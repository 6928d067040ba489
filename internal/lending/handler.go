// internal/lending/handler.go
package lending

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bookhive/internal/apperr"
	"bookhive/internal/auth"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req struct {
		BookID uuid.UUID `json:"book_id"`
		DueAt  time.Time `json:"due_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	borrow, err := h.service.Borrow(r.Context(), identity.UserID, req.BookID, req.DueAt)
	if err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(borrow)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid borrow ID", http.StatusBadRequest)
		return
	}

	borrow, err := h.service.Return(r.Context(), id, identity.UserID, identity.IsAdmin())
	if err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	json.NewEncoder(w).Encode(borrow)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid borrow ID", http.StatusBadRequest)
		return
	}

	if err := h.service.Remove(r.Context(), id, identity.UserID, identity.IsAdmin()); err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid borrow ID", http.StatusBadRequest)
		return
	}

	borrow, err := h.service.GetBorrow(r.Context(), id, identity.UserID, identity.IsAdmin())
	if err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	json.NewEncoder(w).Encode(borrow)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	query := ListQuery{Status: r.URL.Query().Get("status")}
	query.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	query.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	// Non-admins only see their own history.
	if identity.IsAdmin() {
		if rawUserID := r.URL.Query().Get("user_id"); rawUserID != "" {
			userID, err := uuid.Parse(rawUserID)
			if err != nil {
				http.Error(w, "invalid user_id filter", http.StatusBadRequest)
				return
			}
			query.UserID = &userID
		}
	} else {
		query.UserID = &identity.UserID
	}

	borrows, total, err := h.service.ListBorrows(r.Context(), query)
	if err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	page, limit := clampPage(query.Page, query.Limit)
	json.NewEncoder(w).Encode(struct {
		Data       []*Borrow `json:"data"`
		Page       int       `json:"page"`
		Limit      int       `json:"limit"`
		Total      int       `json:"total"`
		TotalPages int       `json:"total_pages"`
	}{borrows, page, limit, total, (total + limit - 1) / limit})
}
