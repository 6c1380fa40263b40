package model

import "time"

// Time block types.
const (
	BlockFocus   = "focus"
	BlockMeeting = "meeting"
	BlockBreak   = "break"
	BlockAdmin   = "admin"
)

// TimeBlock is a scheduled slot on the planner, optionally linked to
// active tasks by local id.
type TimeBlock struct {
	ID        string    `json:"id" db:"id"`
	RemoteID  string    `json:"remote_id,omitempty" db:"remote_id"`
	Title     string    `json:"title" db:"title"`
	Date      string    `json:"date" db:"date"`
	Time      string    `json:"time" db:"time"`
	Duration  string    `json:"duration" db:"duration"`
	Type      string    `json:"type" db:"type"`
	Completed bool      `json:"completed" db:"completed"`
	TaskIDs   []int64   `json:"tasks" db:"-"`
	Synced    bool      `json:"synced" db:"synced"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ValidBlockType reports whether t is a known time block type.
func ValidBlockType(t string) bool {
	switch t {
	case BlockFocus, BlockMeeting, BlockBreak, BlockAdmin:
		return true
	}
	return false
}
