package profileview

import "time"

// Status is the state of a profile-view request.
type Status string

// Request statuses. PENDING is initial.
const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDenied   Status = "DENIED"
)

// CanTransition reports whether s may move to next. DENIED is terminal.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusDenied
	case StatusApproved:
		return next == StatusDenied
	}
	return false
}

// Open reports whether the request still blocks a new one for the same item.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusApproved
}

// Request asks an item owner to reveal their full profile.
type Request struct {
	ID            int64      `json:"id"`
	ItemID        int64      `json:"item_id"`
	OwnerID       int64      `json:"owner_id"`
	RequesterID   int64      `json:"requester_id"`
	InterestID    *int64     `json:"interest_id,omitempty"`
	ChatMessageID *int64     `json:"chat_message_id,omitempty"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
}

// CreateRequest is the payload for POST /profile-view-requests. Exactly one
// proof reference must be set.
type CreateRequest struct {
	ItemID        int64  `json:"item_id" validate:"required,gt=0"`
	InterestID    *int64 `json:"interest_id" validate:"omitempty,gt=0"`
	ChatMessageID *int64 `json:"chat_message_id" validate:"omitempty,gt=0"`
}
