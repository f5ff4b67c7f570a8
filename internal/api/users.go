package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/doorlink-io/doorlink-core/internal/auth"
)

// createUserRequest is the request body for POST /users.
type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// handleListUsers returns all accounts. Admin only.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}

// handleCreateUser creates an account. Admin only.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Password == "" {
		writeBadRequest(w, "password is required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeInternalError(w, "failed to hash password")
		return
	}

	user := &auth.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         auth.Role(req.Role),
	}
	if err := s.users.Create(r.Context(), user); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail):
			writeBadRequest(w, "invalid email address")
		case errors.Is(err, auth.ErrInvalidRole):
			writeBadRequest(w, "role must be user or admin")
		case errors.Is(err, auth.ErrUserExists):
			writeConflict(w, "an account with this email already exists")
		default:
			writeInternalError(w, "failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}
