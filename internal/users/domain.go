package users

import "time"

// User represents a user account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	RoleID       *int64    `json:"role_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is what a viewer may see of another user. Contact fields are only
// filled when Full is true.
type Profile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Full      bool      `json:"full"`
	Email     string    `json:"email,omitempty"`
	RoleID    *int64    `json:"role_id,omitempty"`
	IsActive  *bool     `json:"is_active,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=128"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// AssignRoleRequest is the payload for PUT /users/{id}/role.
type AssignRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}
