package dto

import "time"

// RegisterRequest payload.
type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Name     *string `json:"name"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest payload.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest payload.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// UpdateRolesRequest payload.
type UpdateRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1"`
}

// UserResponse public view of an account.
type UserResponse struct {
	ID    int64    `json:"id"`
	Email string   `json:"email"`
	Name  *string  `json:"name"`
	Roles []string `json:"roles"`
}

// AuthResponse returned on register and login.
type AuthResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}
