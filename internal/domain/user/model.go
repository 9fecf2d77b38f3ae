package user

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleSuperadmin = "SUPERADMIN"
	RoleAdmin      = "ADMIN"
	RoleDoctor     = "DOCTOR"
	RoleNurse      = "NURSE"
	RoleStaff      = "STAFF"
	RoleCashier    = "CASHIER"
)

// ValidRoles lists every role a user account may carry.
var ValidRoles = []string{RoleSuperadmin, RoleAdmin, RoleDoctor, RoleNurse, RoleStaff, RoleCashier}

func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TenantID     uuid.UUID `db:"tenant_id" json:"tenant_id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         string    `db:"role" json:"role"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
