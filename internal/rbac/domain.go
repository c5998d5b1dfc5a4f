package rbac

import (
	"strings"
	"time"
)

// Permission represents an atomic capability.
type Permission struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Implication states that holding Parent grants Child.
type Implication struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

// Snapshot is the committed state of the catalog tables read in one transaction.
type Snapshot struct {
	Version      int64
	Permissions  []Permission
	Implications []Implication
}

// CreatePermissionRequest is the payload for POST /permissions.
type CreatePermissionRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=255"`
}

// ImplicationRequest is the payload for implication endpoints.
type ImplicationRequest struct {
	Parent string `json:"parent" validate:"required,max=64"`
	Child  string `json:"child" validate:"required,max=64"`
}

// Normalize trims and lower-cases a permission name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
