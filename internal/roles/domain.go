package roles

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Reserved role names. They are always protected.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Role represents a named set of granted permissions.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Permissions []string  `json:"permissions"`
	Protected   bool      `json:"protected"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsReservedName reports whether name belongs to a built-in role.
func IsReservedName(name string) bool {
	switch cases.Fold().String(strings.TrimSpace(name)) {
	case RoleAdmin, RoleUser:
		return true
	}
	return false
}

// IsProtected reports whether the role may not be modified or deleted.
func (r Role) IsProtected() bool {
	return r.Protected || IsReservedName(r.Name)
}

// RoleView is the read-only projection served by ListRoles.
type RoleView struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Protected   bool           `json:"protected"`
	Permissions []string       `json:"permissions"`
	Categories  []CategoryView `json:"categories"`
}

// CategoryView groups the permissions implied by one parent permission.
type CategoryView struct {
	Name        string           `json:"name"`
	Granted     bool             `json:"granted"`
	Permissions []PermissionFlag `json:"permissions"`
}

// PermissionFlag marks whether the role holds a permission.
type PermissionFlag struct {
	Name    string `json:"name"`
	Granted bool   `json:"granted"`
}

// CreateRoleRequest is the payload for POST /roles.
type CreateRoleRequest struct {
	Name        string   `json:"name" validate:"required,max=64"`
	Description string   `json:"description" validate:"max=255"`
	Permissions []string `json:"permissions" validate:"dive,required,max=64"`
}

// UpdateRoleRequest is the payload for PATCH /roles/{id}. Nil fields are left unchanged.
type UpdateRoleRequest struct {
	Name        *string   `json:"name" validate:"omitempty,min=1,max=64"`
	Description *string   `json:"description" validate:"omitempty,max=255"`
	Permissions *[]string `json:"permissions" validate:"omitempty,dive,required,max=64"`
}
