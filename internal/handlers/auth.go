package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"expenses-api/internal/auth"
	"expenses-api/internal/expenses"
)

type credentialsRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Register creates a new user account.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decodeCredentials(w, r, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.svc.RegisterUser(r.Context(), req.Name, hash)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	slog.Info("user registered", "user_id", user.ID, "name", user.Name)
	writeJSON(w, http.StatusCreated, user)
}

// Login exchanges a name and password for an access token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decodeCredentials(w, r, &req) {
		return
	}

	user, err := h.svc.UserByName(r.Context(), req.Name)
	if err != nil && !errors.Is(err, expenses.ErrNotFound) {
		h.fail(w, r, err)
		return
	}
	if user == nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, CodeBadCredentials, nil)
		return
	}

	token, _, err := h.tokens.Issue(user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.tokens.TTL().Seconds()),
	})
}

// Logout revokes the token used for the request.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.Revoke(r.Context(), getClaimsFromContext(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

// Me returns the authenticated user.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GetUserFromContext(r))
}

func (h *Handlers) decodeCredentials(w http.ResponseWriter, r *http.Request, req *credentialsRequest) bool {
	if !h.decode(w, r, req) {
		return false
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, fieldErrors{"name": {"Name must not be empty."}})
		return false
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, fieldErrors{
			"password": {fmt.Sprintf("Longer than maximum length %d bytes.", auth.MaxPasswordBytes)},
		})
		return false
	}
	return true
}
