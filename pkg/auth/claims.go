package auth

import (
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.Role
	// JTI doubles as the session id in Redis. Generated when empty.
	JTI string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// ActionTokenClaims bind a security token to one session and one action name.
type ActionTokenClaims struct {
	Action    string `json:"act"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}
