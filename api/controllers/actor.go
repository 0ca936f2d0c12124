package controllers

import (
	"net/http"

	"github.com/angelmondragon/bistro-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/rbac"
)

func requireActor(r *http.Request) (rbac.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return rbac.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return actor, nil
}
