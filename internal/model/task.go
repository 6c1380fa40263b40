package model

import (
	"fmt"
	"strings"
	"time"
)

// Collection names one of the two task collections in the local store.
type Collection string

const (
	CollectionTasks    Collection = "tasks"
	CollectionArchived Collection = "archivedTasks"
)

// Status is the workflow state of a task and decides which bucket shows it.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "inprogress"
	StatusCompleted  Status = "completed"
)

// Remote status strings, as the workspace service stores them. Writes to
// the proxy carry the local vocabulary and the proxy maps it onto these.
const (
	RemoteStatusPending    = "Pending"
	RemoteStatusInProgress = "In progress"
	RemoteStatusCompleted  = "Completed"
)

// Valid reports whether s is one of the known task statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Remote returns the workspace service spelling of s. Anything unknown is
// stored as pending.
func (s Status) Remote() string {
	switch s {
	case StatusInProgress:
		return RemoteStatusInProgress
	case StatusCompleted:
		return RemoteStatusCompleted
	default:
		return RemoteStatusPending
	}
}

// Next cycles pending -> inprogress -> completed -> pending.
func (s Status) Next() Status {
	switch s {
	case StatusPending:
		return StatusInProgress
	case StatusInProgress:
		return StatusCompleted
	default:
		return StatusPending
	}
}

// ParseRemoteStatus maps a status read from the workspace service onto the
// local vocabulary. Matching ignores case, spaces, underscores and hyphens.
// Unrecognized values map to StatusPending.
func ParseRemoteStatus(raw string) Status {
	norm := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, strings.ToLower(raw))

	switch norm {
	case "inprogress":
		return StatusInProgress
	case "completed", "complete", "done":
		return StatusCompleted
	default:
		return StatusPending
	}
}

// Priority classifies a task as low, medium or high.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority lowercases raw and falls back to PriorityMedium for
// anything it does not recognize.
func ParsePriority(raw string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(raw))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	}
	return PriorityMedium
}

// SyncStatus is the reconciliation state of a record against the remote.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

// DefaultCategory is used when a task is created or fetched without one.
const DefaultCategory = "Other"

// DateLayout is the calendar-date format used for due dates on disk and on
// the wire.
const DateLayout = "2006-01-02"

// Task is a record in either the active or the archived collection.
type Task struct {
	// LocalID is assigned by the local store and stays stable for the
	// lifetime of the record in its collection.
	LocalID int64 `json:"local_id"`

	// RemoteID is the workspace service's id, empty until the record has
	// been accepted remotely.
	RemoteID string `json:"remote_id,omitempty"`

	Title    string     `json:"title"`
	Category string     `json:"category"`
	Priority Priority   `json:"priority"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	Status   Status     `json:"status"`

	SyncStatus SyncStatus `json:"sync_status"`

	// UpdatedAt is the time of the last local mutation.
	UpdatedAt time.Time `json:"updated_at"`

	// OriginRemoteID is set on archived records whose active counterpart
	// still has to be soft-deleted remotely.
	OriginRemoteID string `json:"origin_remote_id,omitempty"`

	// SyncAttempts counts consecutive failed remote attempts.
	SyncAttempts int `json:"sync_attempts"`

	// LastAttemptAt is when the last remote attempt finished, if any.
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// Reconciled reports whether the record is known to match the remote.
func (t Task) Reconciled() bool {
	return t.RemoteID != "" && t.SyncStatus == SyncSynced
}

// DueDateString formats the due date, or returns "" when there is none.
func (t Task) DueDateString() string {
	if t.DueDate == nil {
		return ""
	}
	return t.DueDate.Format(DateLayout)
}

// Fields extracts the remote-mirrored fields of t.
func (t Task) Fields() TaskFields {
	return TaskFields{
		Title:    t.Title,
		Category: t.Category,
		Priority: t.Priority,
		DueDate:  t.DueDate,
		Status:   t.Status,
	}
}

// TaskFields is the user-editable, remote-mirrored part of a task.
type TaskFields struct {
	Title    string
	Category string
	Priority Priority
	DueDate  *time.Time
	Status   Status
}

// Normalize trims the title and fills category, priority and status
// defaults.
func (f TaskFields) Normalize() TaskFields {
	f.Title = strings.TrimSpace(f.Title)
	f.Category = strings.TrimSpace(f.Category)
	if f.Category == "" {
		f.Category = DefaultCategory
	}
	f.Priority = ParsePriority(string(f.Priority))
	if f.Status == "" {
		f.Status = StatusPending
	}
	return f
}

// ParseDueDate parses a YYYY-MM-DD string. An empty string yields nil.
func ParseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	// The remote may send full timestamps; only the calendar date matters.
	if len(raw) > len(DateLayout) {
		raw = raw[:len(DateLayout)]
	}
	d, err := time.ParseInLocation(DateLayout, raw, time.Local)
	if err != nil {
		return nil, fmt.Errorf("parsing due date %q: %w", raw, err)
	}
	return &d, nil
}
