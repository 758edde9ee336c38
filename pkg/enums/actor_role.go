package enums

import "fmt"

// ActorRole identifies who is calling the settlement API.
type ActorRole string

const (
	ActorRoleVendor  ActorRole = "vendor"
	ActorRoleBuyer   ActorRole = "buyer"
	ActorRoleAdmin   ActorRole = "admin"
	ActorRoleService ActorRole = "service"
)

var validActorRoles = []ActorRole{
	ActorRoleVendor,
	ActorRoleBuyer,
	ActorRoleAdmin,
	ActorRoleService,
}

// IsValid reports whether the role is one of the known actor roles.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
