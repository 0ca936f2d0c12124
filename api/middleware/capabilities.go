package middleware

import (
	"net/http"

	"github.com/angelmondragon/bistro-backend/api/responses"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/rbac"
)

// RequireCapability rejects callers whose role holds none of caps.
func RequireCapability(reg *rbac.Registry, logg *logger.Logger, caps ...rbac.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			if !actor.Can(reg, caps...) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "You do not have permission to perform this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
