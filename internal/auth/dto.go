package auth

import (
	"time"

	"github.com/angelmondragon/bistro-backend/internal/users"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/google/uuid"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the token pair plus where the role lands after login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	Role         enums.Role     `json:"role"`
	RedirectPath string         `json:"redirect_path"`
	User         *users.UserDTO `json:"user"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type ActionTokenRequest struct {
	Action string `json:"action" validate:"required"`
}

type ActionTokenResponse struct {
	Token     string    `json:"token"`
	Action    string    `json:"action"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RegisterRequest is the public customer sign-up form.
type RegisterRequest struct {
	Email string  `json:"email" validate:"required,email"`
	Name  string  `json:"name" validate:"required,max=200"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=50"`
}

type RegisterResponse struct {
	UserID  uuid.UUID `json:"user_id"`
	Created bool      `json:"created"`
	Message string    `json:"message"`
}
