// handlers/auth.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"p9e.in/zeladoria/accounts"
	"p9e.in/zeladoria/middleware"
	"p9e.in/zeladoria/models"
)

type loginReq struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginResp struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

type userPayload struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Role       string    `json:"role"`
	GabineteID string    `json:"gabineteId"`
}

func toPayload(u models.User) userPayload {
	return userPayload{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Phone:      u.Phone,
		Role:       u.Role,
		GabineteID: u.GabineteID,
	}
}

// Register is the public sign-up. It only creates field agents in the
// configured sign-up gabinete; other roles and gabinetes go through
// CreateUser.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req accounts.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Role != "" && req.Role != models.RoleAgent {
		http.Error(w, "only admins may assign roles", http.StatusForbidden)
		return
	}
	if req.GabineteID != "" && req.GabineteID != h.SignupGabinete {
		http.Error(w, "only admins may assign gabinetes", http.StatusForbidden)
		return
	}
	req.GabineteID = h.SignupGabinete
	h.register(w, r, req)
}

// CreateUser lets an admin register a user with any role.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req accounts.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	h.register(w, r, req)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, req accounts.RegisterInput) {
	u, err := h.Accounts.Register(r.Context(), req)
	switch {
	case errors.Is(err, accounts.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, accounts.ErrDuplicate):
		http.Error(w, "phone or email already registered", http.StatusConflict)
		return
	case err != nil:
		storeError(w, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayload(u))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	u, err := h.Accounts.Authenticate(r.Context(), req.Phone, req.Password)
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		storeError(w, "login", err)
		return
	}
	token, err := h.Tokens.Generate(u)
	if err != nil {
		http.Error(w, "couldn't create token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, loginResp{Token: token, User: toPayload(u)})
}

// CurrentUser returns the account behind the token.
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(middleware.GetUserID(r))
	if err != nil {
		http.Error(w, "invalid token subject", http.StatusUnauthorized)
		return
	}
	u, found, err := h.Accounts.Get(r.Context(), id)
	if err != nil {
		storeError(w, "me", err)
		return
	}
	if !found {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(u))
}
