package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/bistro-backend/api/responses"
	pkgAuth "github.com/angelmondragon/bistro-backend/pkg/auth"
	"github.com/angelmondragon/bistro-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
)

// ActionTokenHeader carries the per-session token minted for one action.
const ActionTokenHeader = "X-Action-Token"

// RequireActionToken checks the action token before anything else on the
// route runs, including capability checks and body parsing.
func RequireActionToken(cfg config.JWTConfig, action string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(ActionTokenHeader))
			sessionID := SessionIDFromContext(r.Context())
			if token == "" || sessionID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeSecurityToken, "Invalid security token"))
				return
			}
			if err := pkgAuth.VerifyActionToken(cfg, token, sessionID, action); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeSecurityToken, err, "Invalid security token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
