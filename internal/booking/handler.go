// internal/booking/handler.go
package booking

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

	booking, err := h.service.Create(r.Context(), identity.UserID, params)
	if err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(booking)
}

func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid booking ID", http.StatusBadRequest)
		return
	}

	var params EditParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	booking, err := h.service.Edit(r.Context(), id, identity.UserID, identity.IsAdmin(), params)
	if err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	json.NewEncoder(w).Encode(booking)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid booking ID", http.StatusBadRequest)
		return
	}

	booking, err := h.service.Cancel(r.Context(), id, identity.UserID, identity.IsAdmin())
	if err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	json.NewEncoder(w).Encode(booking)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid booking ID", http.StatusBadRequest)
		return
	}

	if err := h.service.Remove(r.Context(), id, identity.UserID, identity.IsAdmin()); err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid booking ID", http.StatusBadRequest)
		return
	}

	booking, err := h.service.GetBooking(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	json.NewEncoder(w).Encode(booking)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	query := ListQuery{
		TableName: r.URL.Query().Get("table_name"),
		Status:    r.URL.Query().Get("status"),
	}
	query.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	query.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	if rawUserID := r.URL.Query().Get("user_id"); rawUserID != "" {
		userID, err := uuid.Parse(rawUserID)
		if err != nil {
			http.Error(w, "invalid user_id filter", http.StatusBadRequest)
			return
		}
		query.UserID = &userID
	}

	bookings, total, err := h.service.ListBookings(r.Context(), query)
	if err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	page, limit := clampPage(query.Page, query.Limit)
	json.NewEncoder(w).Encode(struct {
		Data       []*Booking `json:"data"`
		Page       int        `json:"page"`
		Limit      int        `json:"limit"`
		Total      int        `json:"total"`
		TotalPages int        `json:"total_pages"`
	}{bookings, page, limit, total, (total + limit - 1) / limit})
}
