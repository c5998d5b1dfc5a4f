package interests

import "time"

// Interest records a user's wish to receive an item. AssignedBy is set once,
// when the interest is chosen as the item's receiver.
type Interest struct {
	ID         int64     `json:"id"`
	ItemID     int64     `json:"item_id"`
	UserID     int64     `json:"user_id"`
	AssignedBy *int64    `json:"assigned_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Assigned reports whether the interest was chosen as receiver.
func (i Interest) Assigned() bool {
	return i.AssignedBy != nil
}
