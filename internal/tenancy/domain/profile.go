package domain

import "time"

type Role string

const (
	RoleUnset    Role = "unset"
	RoleLandlord Role = "landlord"
	RoleTenant   Role = "tenant"
	RoleAdmin    Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleUnset, RoleLandlord, RoleTenant, RoleAdmin:
		return r, true
	}
	return "", false
}

// SelfAssignable reports whether an identity may pick this role for itself.
func (r Role) SelfAssignable() bool {
	return r == RoleLandlord || r == RoleTenant
}

// Profile is the local record for an identity provider subject.
type Profile struct {
	ID        string
	Email     string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}
