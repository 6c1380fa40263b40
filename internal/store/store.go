package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/efficio/internal/model"
)

// ErrNotFound is returned when an operation references a record that is
// not in the store.
var ErrNotFound = errors.New("record not found")

// TaskFilter selects tasks by any of their indexed fields. Nil and empty
// fields do not constrain the result.
type TaskFilter struct {
	SyncStatuses []model.SyncStatus
	Statuses     []model.Status
	Category     *string
	Priority     *model.Priority
	RemoteID     *string
	HasRemoteID  *bool
	HasDueDate   *bool
	DueBefore    *time.Time // strictly before this calendar date
	SortBy       string     // "local_id" (default), "updated_at", "due_date", "priority", "title"
	SortDesc     bool
	Limit        int
}

// TaskPatch carries the fields to change in Update. Nil fields are left
// untouched.
type TaskPatch struct {
	RemoteID       *string
	Title          *string
	Category       *string
	Priority       *model.Priority
	DueDate        *time.Time
	Status         *model.Status
	SyncStatus     *model.SyncStatus
	UpdatedAt      *time.Time
	OriginRemoteID *string
	SyncAttempts   *int
	LastAttemptAt  *time.Time
}

// Op identifies the kind of write behind a ChangeEvent.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpClear  Op = "clear"
)

// ChangeEvent is published after every committed write to a task
// collection. LocalID is zero for whole-collection operations.
type ChangeEvent struct {
	Collection model.Collection
	LocalID    int64
	Op         Op
}

// Store defines the persistence interface for the two task collections,
// sync notifications and planner time blocks.
type Store interface {
	// === Task collections ===

	Insert(ctx context.Context, coll model.Collection, task model.Task) (int64, error)
	Get(ctx context.Context, coll model.Collection, id int64) (*model.Task, error)
	Update(ctx context.Context, coll model.Collection, id int64, patch TaskPatch) error
	Delete(ctx context.Context, coll model.Collection, id int64) error
	ListAll(ctx context.Context, coll model.Collection) ([]model.Task, error)
	ListWhere(ctx context.Context, coll model.Collection, filter TaskFilter) ([]model.Task, error)
	Clear(ctx context.Context, coll model.Collection) error
	ReplaceAll(ctx context.Context, coll model.Collection, tasks []model.Task) error
	ReplaceIfUnchanged(ctx context.Context, coll model.Collection, tasks []model.Task, guard ReplaceGuard) (bool, error)
	Move(ctx context.Context, from, to model.Collection, id int64, patch TaskPatch) (int64, error)
	CountUnsynced(ctx context.Context, coll model.Collection) (int, error)

	// Version changes on every write to coll.
	Version(coll model.Collection) uint64

	// Subscribe registers for change events. The returned cancel func
	// unregisters and closes the channel.
	Subscribe() (<-chan ChangeEvent, func())

	// === Notifications ===

	CreateNotification(ctx context.Context, n model.Notification) error
	GetUnreadNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error

	// === Time blocks ===

	SaveTimeBlock(ctx context.Context, block model.TimeBlock) error
	GetTimeBlock(ctx context.Context, id string) (*model.TimeBlock, error)
	DeleteTimeBlock(ctx context.Context, id string) error
	ListTimeBlocks(ctx context.Context, date string) ([]model.TimeBlock, error)
	MarkTimeBlockSynced(ctx context.Context, id, remoteID string) error
}
