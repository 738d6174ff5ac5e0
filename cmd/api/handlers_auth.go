package main

import (
	"errors"
	"net/http"
	"time"

	"rentfit/apperr"
	"rentfit/auth"
	"rentfit/user"
)

type userResponse struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      user.Role `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u user.User) userResponse {
	return userResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// authError maps auth sentinels onto API codes.
func authError(err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apperr.Wrap(err, apperr.CodeUnauthorized, "Invalid email or password")
	case errors.Is(err, auth.ErrWeakPassword):
		return apperr.Wrap(err, apperr.CodeValidation, "password must be at least 8 characters")
	case errors.Is(err, user.ErrDuplicateEmail):
		return apperr.Wrap(err, apperr.CodeConflict, "Email is already registered")
	default:
		return err
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.auth.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, r, authError(err))
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{"user": toUserResponse(u)}, "User registered successfully")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.auth.Login(r.Context(), req)
	if err != nil {
		s.writeError(w, r, authError(err))
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"token": res.Token,
		"user":  toUserResponse(res.User),
	}, "Login successful")
}
