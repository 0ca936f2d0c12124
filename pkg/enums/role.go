package enums

import (
	"fmt"
	"strings"
)

// Role names a bundle of capabilities granted to a user.
type Role string

const (
	RoleCustomer      Role = "restaurant_customer"
	RoleWaiter        Role = "restaurant_waiter"
	RoleKitchen       Role = "restaurant_kitchen"
	RoleInventory     Role = "restaurant_inventory"
	RoleManager       Role = "restaurant_manager"
	RoleAdministrator Role = "administrator"
)

var validRoles = []Role{
	RoleCustomer,
	RoleWaiter,
	RoleKitchen,
	RoleInventory,
	RoleManager,
	RoleAdministrator,
}

// Roles returns every known role in declaration order.
func Roles() []Role {
	out := make([]Role, len(validRoles))
	copy(out, validRoles)
	return out
}

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParseRole(value string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
