// internal/auth/handler.go
package auth

import (
	"encoding/json"
	"net/http"

	"bookhive/internal/apperr"
	"bookhive/internal/member"
)

type Handler struct {
	members member.Service
	issuer  *TokenIssuer
}

func NewHandler(members member.Service, issuer *TokenIssuer) *Handler {
	return &Handler{members: members, issuer: issuer}
}

type authResponse struct {
	Token string       `json:"token"`
	User  *member.User `json:"user"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var params member.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Self-registration never grants admin.
	params.Role = member.RoleStudent

	user, err := h.members.Register(r.Context(), params)
	if err != nil {
		http.Error(w, err.Error(), apperr.Status(err))
		return
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(authResponse{Token: token, User: user})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.members.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(authResponse{Token: token, User: user})
}
