package security

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var emailValidator = validator.New()

// NormalizeEmail trims, lowercases and validates an address. Display names
// ("Jane <jane@example.com>") are rejected.
func NormalizeEmail(raw string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", fmt.Errorf("email is required")
	}
	if err := emailValidator.Var(trimmed, "email"); err != nil {
		return "", fmt.Errorf("invalid email %q", raw)
	}
	return trimmed, nil
}
