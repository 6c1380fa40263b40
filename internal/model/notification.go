package model

import "time"

// Notification is a non-blocking notice surfaced to the user, typically
// about a remote sync attempt that failed and was absorbed into record
// state.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id"`

	// Collection and LocalID point at the record the notice is about.
	// LocalID is zero for notices not tied to a task.
	Collection Collection `json:"collection"`
	LocalID    int64      `json:"local_id"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at"`
}
