package types

import "strings"

// Role is the access level of a user. The ordinal is the rank, RoleNone is the absent role and ranks below every
// real role.
type Role int

const (
	RoleNone Role = iota
	RoleUser
	RoleResearcher
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleUser:       "USER",
	RoleResearcher: "RESEARCHER",
	RoleAdmin:      "ADMIN",
}

// ParseRole returns the Role for its wire name (case insensitive), RoleNone for anything unknown.
func ParseRole(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USER":
		return RoleUser
	case "RESEARCHER":
		return RoleResearcher
	case "ADMIN":
		return RoleAdmin
	}
	return RoleNone
}

func (r Role) String() string {
	return roleNames[r]
}

// Valid is false for RoleNone and out-of-range values.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	*r = ParseRole(string(b))
	return nil
}
