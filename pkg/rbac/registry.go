// Package rbac holds the role to capability mapping. The registry is built once
// at process start and passed to whatever needs to authorize an action.
package rbac

import (
	"fmt"
	"sort"

	"github.com/angelmondragon/bistro-backend/pkg/enums"
)

// RoleDefinition bundles the capabilities and landing page for one role.
type RoleDefinition struct {
	Role         enums.Role
	DisplayName  string
	Capabilities []Capability
	LoginPath    string
}

// Registry answers capability questions for a fixed set of roles.
type Registry struct {
	roles map[enums.Role]roleEntry
	order []enums.Role
}

type roleEntry struct {
	def  RoleDefinition
	caps map[Capability]struct{}
}

// NewRegistry validates defs and freezes them. Duplicate roles are rejected.
func NewRegistry(defs []RoleDefinition) (*Registry, error) {
	reg := &Registry{roles: make(map[enums.Role]roleEntry, len(defs))}
	for _, def := range defs {
		if !def.Role.IsValid() {
			return nil, fmt.Errorf("rbac: unknown role %q", def.Role)
		}
		if _, exists := reg.roles[def.Role]; exists {
			return nil, fmt.Errorf("rbac: duplicate role %q", def.Role)
		}
		caps := make(map[Capability]struct{}, len(def.Capabilities))
		for _, c := range def.Capabilities {
			caps[c] = struct{}{}
		}
		reg.roles[def.Role] = roleEntry{def: def, caps: caps}
		reg.order = append(reg.order, def.Role)
	}
	return reg, nil
}

// MustDefault builds the registry from DefaultRoles and panics on a bad table.
func MustDefault() *Registry {
	reg, err := NewRegistry(DefaultRoles())
	if err != nil {
		panic(err)
	}
	return reg
}

// Has reports whether role holds capability.
func (r *Registry) Has(role enums.Role, capability Capability) bool {
	if r == nil {
		return false
	}
	entry, ok := r.roles[role]
	if !ok {
		return false
	}
	_, ok = entry.caps[capability]
	return ok
}

// HasAny reports whether role holds at least one of caps.
func (r *Registry) HasAny(role enums.Role, caps ...Capability) bool {
	for _, c := range caps {
		if r.Has(role, c) {
			return true
		}
	}
	return false
}

// Capabilities returns the sorted capability names granted to role.
func (r *Registry) Capabilities(role enums.Role) []Capability {
	if r == nil {
		return nil
	}
	entry, ok := r.roles[role]
	if !ok {
		return nil
	}
	out := make([]Capability, 0, len(entry.caps))
	for c := range entry.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RolesWith lists the roles that hold capability, in registration order.
func (r *Registry) RolesWith(capability Capability) []enums.Role {
	if r == nil {
		return nil
	}
	var out []enums.Role
	for _, role := range r.order {
		if r.Has(role, capability) {
			out = append(out, role)
		}
	}
	return out
}

// LoginPath returns where a freshly logged in user of role should land.
func (r *Registry) LoginPath(role enums.Role) string {
	if r == nil {
		return "/"
	}
	entry, ok := r.roles[role]
	if !ok || entry.def.LoginPath == "" {
		return "/"
	}
	return entry.def.LoginPath
}

func (r *Registry) DisplayName(role enums.Role) string {
	if entry, ok := r.roles[role]; ok {
		return entry.def.DisplayName
	}
	return string(role)
}
