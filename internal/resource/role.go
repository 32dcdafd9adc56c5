package resource

import "fmt"

// Role is a channel's role inside a bridge.
type Role int

const (
	RoleParticipant Role = iota
	RoleAnnounce
)

var roleNames = [...]string{
	RoleParticipant: "participant",
	RoleAnnounce:    "announce",
}

// String returns the wire value.
func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// ParseRole converts a wire value to a Role.
func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if name == s {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown bridge role %q", s)
}
