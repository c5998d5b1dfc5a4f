package items

import "time"

// Kind is fixed at creation.
type Kind string

// Item kinds.
const (
	KindLost  Kind = "LOST"
	KindFound Kind = "FOUND"
	KindFree  Kind = "FREE"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindLost, KindFound, KindFree:
		return true
	}
	return false
}

// AcceptsInterest reports whether users may express interest in items of this kind.
func (k Kind) AcceptsInterest() bool {
	return k == KindFound || k == KindFree
}

// Status is the lifecycle state of an item.
type Status string

// Item statuses. ACTIVE is initial, the others are terminal.
const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusRejected  Status = "REJECTED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether s may move to next.
func (s Status) CanTransition(next Status) bool {
	return s == StatusActive && (next == StatusCompleted || next == StatusRejected)
}

// Item is a lost, found or free object posted on the marketplace.
type Item struct {
	ID          int64     `json:"id"`
	Kind        Kind      `json:"kind"`
	OwnerID     *int64    `json:"owner_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwnedBy reports whether userID owns the item.
func (i Item) OwnedBy(userID int64) bool {
	return i.OwnerID != nil && *i.OwnerID == userID
}

// Filter narrows FindAll. Zero values match everything.
type Filter struct {
	Kind    Kind
	Status  Status
	OwnerID *int64
	Limit   int
	Offset  int
}

// CreateRequest is the payload for POST /items.
type CreateRequest struct {
	Kind        Kind   `json:"kind" validate:"required,oneof=LOST FOUND FREE"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Location    string `json:"location" validate:"max=200"`
}
