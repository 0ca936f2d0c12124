package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// MintAccessToken issues a signed JWT for the provided payload using the configured TTL.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := requireSigningConfig(cfg); err != nil {
		return "", err
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	if payload.UserID == uuid.Nil {
		return "", fmt.Errorf("user id is required")
	}
	if !payload.Role.IsValid() {
		return "", fmt.Errorf("invalid role %q", payload.Role)
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := AccessTokenClaims{
		UserID: payload.UserID,
		Role:   payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        jti,
		},
	}
	return sign(cfg, claims)
}

// ParseAccessToken validates the JWT string and returns typed claims.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	if err := parse(cfg, tokenString, claims, false); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseAccessTokenAllowExpired parses the JWT without validating exp/nbf so refresh can inspect jti.
func ParseAccessTokenAllowExpired(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	if err := parse(cfg, tokenString, claims, true); err != nil {
		return nil, err
	}
	return claims, nil
}

// MintActionToken issues the per-session security token required by state
// changing endpoints such as cancelling a reservation.
func MintActionToken(cfg config.JWTConfig, now time.Time, sessionID, action string) (string, time.Time, error) {
	if err := requireSigningConfig(cfg); err != nil {
		return "", time.Time{}, err
	}
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(action) == "" {
		return "", time.Time{}, fmt.Errorf("session id and action are required")
	}
	expiresAt := now.Add(cfg.ActionTokenTTL())
	claims := ActionTokenClaims{
		Action:    action,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := sign(cfg, claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// VerifyActionToken checks signature, expiry, session binding and action.
func VerifyActionToken(cfg config.JWTConfig, tokenString, sessionID, action string) error {
	claims := &ActionTokenClaims{}
	if err := parse(cfg, tokenString, claims, false); err != nil {
		return err
	}
	if claims.SessionID != sessionID {
		return fmt.Errorf("action token bound to another session")
	}
	if claims.Action != action {
		return fmt.Errorf("action token issued for %q", claims.Action)
	}
	return nil
}

func requireSigningConfig(cfg config.JWTConfig) error {
	if cfg.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return fmt.Errorf("jwt issuer is required")
	}
	return nil
}

func sign(cfg config.JWTConfig, claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

func parse(cfg config.JWTConfig, tokenString string, claims jwt.Claims, allowExpired bool) error {
	if cfg.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtSigningMethod {
			return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	return err
}
