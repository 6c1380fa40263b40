// Package gateway is the network boundary to the workspace proxy. The sync
// engine depends only on the Gateway interface; Client is the HTTP
// implementation.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/efficio/internal/model"
)

// Gateway exposes task, habit and time-block CRUD against the workspace
// service. Every call may fail; callers treat failures as recoverable.
type Gateway interface {
	// Ping reports whether the proxy is reachable.
	Ping(ctx context.Context) error

	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, fields model.TaskFields) (string, error)
	UpdateTaskStatus(ctx context.Context, remoteID string, status model.Status) error

	// SoftDeleteTask marks the remote record archived; it is not destroyed.
	SoftDeleteTask(ctx context.Context, remoteID string) error

	ListArchivedTasks(ctx context.Context) ([]model.Task, error)
	CreateArchivedTask(ctx context.Context, fields model.TaskFields) (string, error)

	ListHabits(ctx context.Context) ([]model.Habit, error)
	SetHabitDone(ctx context.Context, habitID string, done bool) error

	CreateTimeBlock(ctx context.Context, block model.TimeBlock) (string, error)
}

// RemoteError is an error payload returned by the proxy.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Details    string
}

func (e *RemoteError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: remote error (%d): %s (%s)", e.Op, e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: remote error (%d): %s", e.Op, e.StatusCode, e.Message)
}

// IsRemoteError reports whether err (or any error in its chain) is a
// RemoteError.
func IsRemoteError(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr)
}

// taskPayload is the wire shape of a task on the proxy.
type taskPayload struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Category string `json:"category"`
	DueDate  string `json:"dueDate"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// toPayload converts fields to the wire shape. The status goes out in the
// local vocabulary; the proxy maps it to the workspace's names.
func toPayload(f model.TaskFields) taskPayload {
	t := model.Task{DueDate: f.DueDate}
	return taskPayload{
		Title:    f.Title,
		Category: f.Category,
		DueDate:  t.DueDateString(),
		Status:   string(f.Status),
		Priority: string(f.Priority),
	}
}

// toTask converts a wire task into a local record carrying its remote id.
// Unparseable due dates are dropped rather than failing the whole list.
func (p taskPayload) toTask() model.Task {
	due, _ := model.ParseDueDate(p.DueDate)
	category := p.Category
	if category == "" {
		category = model.DefaultCategory
	}
	title := p.Title
	if title == "" {
		title = "Untitled Task"
	}
	return model.Task{
		RemoteID: p.ID,
		Title:    title,
		Category: category,
		Priority: model.ParsePriority(p.Priority),
		DueDate:  due,
		Status:   model.ParseRemoteStatus(p.Status),
	}
}

// createResponse is the proxy's reply to create calls.
type createResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// errorResponse is the proxy's error payload.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Message string `json:"message"`
}

// statusRequest is the body of a status update.
type statusRequest struct {
	Status string `json:"status"`
}

// habitDoneRequest is the body of a habit update.
type habitDoneRequest struct {
	DoNow bool `json:"doNow"`
}

// timeBlockPayload is the wire shape of a time block.
type timeBlockPayload struct {
	Title    string  `json:"title"`
	Date     string  `json:"date"`
	Time     string  `json:"time"`
	Duration string  `json:"duration"`
	Type     string  `json:"type"`
	Tasks    []int64 `json:"tasks"`
}
