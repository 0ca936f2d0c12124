package rbac

import (
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/google/uuid"
)

// Actor is the authenticated caller as seen by domain services.
type Actor struct {
	UserID    uuid.UUID
	Role      enums.Role
	SessionID string
}

// Can reports whether the actor's role holds any of caps.
func (a Actor) Can(reg *Registry, caps ...Capability) bool {
	if reg == nil || a.UserID == uuid.Nil {
		return false
	}
	return reg.HasAny(a.Role, caps...)
}
