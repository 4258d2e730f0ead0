package dto

import "time"

// LoginRequest payload.
type LoginRequest struct {
	Operator string `json:"operator" validate:"omitempty,max=64"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse payload.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
