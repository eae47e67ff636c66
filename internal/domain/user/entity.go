package user

import (
	"time"

	"github.com/google/uuid"
)

// Role is the role a caller acts under.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleOperator   Role = "operator"
	RoleSuperAdmin Role = "superadmin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleOperator, RoleSuperAdmin:
		return true
	}
	return false
}

// User is the role-lookup document of an authenticated person.
type User struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Actor is the already-authenticated caller of a mutating operation.
type Actor struct {
	UserID uuid.UUID
	Email  string
	Role   Role
}

// IsOperator reports whether the actor may perform operator work.
func (a Actor) IsOperator() bool {
	return a.Role == RoleOperator || a.Role == RoleSuperAdmin
}

func (a Actor) IsSuperAdmin() bool {
	return a.Role == RoleSuperAdmin
}
