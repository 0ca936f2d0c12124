package middleware

import (
	"context"

	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/rbac"
	"github.com/google/uuid"
)

type contextKey string

const (
	ctxUserID    contextKey = "user_id"
	ctxRole      contextKey = "actor_role"
	ctxSessionID contextKey = "session_id"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext returns the access token jti, which action tokens are
// bound to.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext assembles the authenticated caller. ok is false when the
// request did not pass through Auth.
func ActorFromContext(ctx context.Context) (rbac.Actor, bool) {
	userID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return rbac.Actor{}, false
	}
	return rbac.Actor{
		UserID:    userID,
		Role:      enums.Role(RoleFromContext(ctx)),
		SessionID: SessionIDFromContext(ctx),
	}, true
}

// WithActor seeds ctx the way Auth does. Used by tests and internal callers.
func WithActor(ctx context.Context, actor rbac.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, actor.UserID.String())
	ctx = context.WithValue(ctx, ctxRole, string(actor.Role))
	return context.WithValue(ctx, ctxSessionID, actor.SessionID)
}
