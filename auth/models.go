package auth

import "rentfit/user"

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID string
	Role   user.Role
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	FirstName string    `json:"firstName" validate:"notblank,max=100"`
	LastName  string    `json:"lastName" validate:"max=100"`
	Email     string    `json:"email" validate:"required,email"`
	Phone     string    `json:"phone" validate:"max=20"`
	Password  string    `json:"password" validate:"required"`
	Role      user.Role `json:"role" validate:"omitempty,oneof=tenant landlord admin"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult bundles the token and user returned after a successful login.
type LoginResult struct {
	Token string
	User  user.User
}
