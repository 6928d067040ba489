// internal/ticket/handler.go
package ticket

import (
	"encoding/json"
	"net/http"
	"strconv"

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

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var params CreateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ticket, err := h.service.Create(r.Context(), identity.UserID, params)
	if err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(ticket)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid ticket ID", http.StatusBadRequest)
		return
	}

	ticket, err := h.service.GetTicket(r.Context(), id, identity.UserID, identity.IsAdmin())
	if err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	json.NewEncoder(w).Encode(ticket)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	query := ListQuery{
		Type:     r.URL.Query().Get("type"),
		Category: r.URL.Query().Get("category"),
		Status:   r.URL.Query().Get("status"),
	}
	query.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	query.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	// Non-admins only see their own tickets; admins may filter by user.
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

	tickets, total, err := h.service.ListTickets(r.Context(), query)
	if err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	page, limit := clampPage(query.Page, query.Limit)
	json.NewEncoder(w).Encode(struct {
		Data       []*Ticket `json:"data"`
		Page       int       `json:"page"`
		Limit      int       `json:"limit"`
		Total      int       `json:"total"`
		TotalPages int       `json:"total_pages"`
	}{tickets, page, limit, total, (total + limit - 1) / limit})
}

func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid ticket ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ticket, err := h.service.Review(r.Context(), id, identity.UserID, req.Status)
	if err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	json.NewEncoder(w).Encode(ticket)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid ticket ID", http.StatusBadRequest)
		return
	}

	if err := h.service.Delete(r.Context(), id, identity.UserID, identity.IsAdmin()); err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
