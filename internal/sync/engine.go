// Package sync reconciles the local task store with the remote workspace.
// Every mutation writes locally first, then tries the remote when online,
// then records the outcome on the local record.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	gosync "sync"
	"time"

	"github.com/nhle/efficio/internal/gateway"
	"github.com/nhle/efficio/internal/model"
	"github.com/nhle/efficio/internal/store"
)

// Connectivity reports whether remote calls should be attempted.
type Connectivity interface {
	Online() bool
}

// Options tunes an Engine. Zero fields take the defaults below.
type Options struct {
	// MaxAttempts caps how many times a failed record is re-queued.
	MaxAttempts int

	// BaseBackoff is the wait after the first failure; it doubles per
	// attempt up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// ArchiveAfterDays is how many calendar days past due a completed
	// task stays active.
	ArchiveAfterDays int

	Logger *log.Logger

	// Now overrides the wall clock.
	Now func() time.Time

	// Notify receives every absorbed remote failure after it is stored.
	Notify func(model.Notification)
}

const (
	defaultMaxAttempts      = 5
	defaultBaseBackoff      = 30 * time.Second
	defaultMaxBackoff       = time.Hour
	defaultArchiveAfterDays = 5
)

// Engine owns the reconciliation protocol between the local store and the
// remote gateway. Create one with New; it holds no global state.
type Engine struct {
	store   store.Store
	gateway gateway.Gateway
	conn    Connectivity
	logger  *log.Logger
	now     func() time.Time
	notify  func(model.Notification)
	opts    Options
	locks   *recordLocks

	// blockMu serializes remote creation of time blocks.
	blockMu gosync.Mutex
}

// New creates an Engine. conn may be nil, in which case the engine treats
// itself as permanently offline.
func New(s store.Store, gw gateway.Gateway, conn Connectivity, opts Options) *Engine {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = defaultBaseBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.ArchiveAfterDays <= 0 {
		opts.ArchiveAfterDays = defaultArchiveAfterDays
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		store:   s,
		gateway: gw,
		conn:    conn,
		logger:  logger,
		now:     now,
		notify:  opts.Notify,
		opts:    opts,
		locks:   newRecordLocks(),
	}
}

// Online reports whether the engine will attempt remote calls right now.
func (e *Engine) Online() bool {
	return e.conn != nil && e.gateway != nil && e.conn.Online()
}

// Store returns the local store the engine writes to.
func (e *Engine) Store() store.Store {
	return e.store
}

// CreateTask validates fields, stores a new pending task and, when online,
// pushes it to the remote. Remote failures leave the task in the error
// state and are reported as notifications; they are not returned.
func (e *Engine) CreateTask(ctx context.Context, fields model.TaskFields) (*model.Task, error) {
	f := fields.Normalize()
	if f.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !f.Status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", f.Status)}
	}

	id, err := e.store.Insert(ctx, model.CollectionTasks, model.Task{
		Title:      f.Title,
		Category:   f.Category,
		Priority:   f.Priority,
		DueDate:    f.DueDate,
		Status:     f.Status,
		SyncStatus: model.SyncPending,
		UpdatedAt:  e.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	if e.Online() {
		unlock := e.locks.lock(model.CollectionTasks, id)
		_, err = e.pushActive(ctx, id)
		unlock()
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	return e.store.Get(ctx, model.CollectionTasks, id)
}

// UpdateStatus writes a new status locally and, when the task is known
// remotely and the engine is online, pushes it.
func (e *Engine) UpdateStatus(ctx context.Context, localID int64, status model.Status) (*model.Task, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	unlock := e.locks.lock(model.CollectionTasks, localID)
	defer unlock()

	now := e.now()
	pending := model.SyncPending
	zero := 0
	err := e.store.Update(ctx, model.CollectionTasks, localID, store.TaskPatch{
		Status:       &status,
		SyncStatus:   &pending,
		UpdatedAt:    &now,
		SyncAttempts: &zero,
	})
	if err != nil {
		return nil, fmt.Errorf("updating status of task %d: %w", localID, err)
	}

	task, err := e.store.Get(ctx, model.CollectionTasks, localID)
	if err != nil {
		return nil, err
	}

	// A task the remote has never seen waits for the sweep to create it.
	if task.RemoteID == "" || !e.Online() {
		return task, nil
	}

	if _, err := e.pushActive(ctx, localID); err != nil {
		return nil, err
	}
	return e.store.Get(ctx, model.CollectionTasks, localID)
}

// ReplaceFromRemote replaces coll wholesale with records, all marked
// synced. Local ids of the previous contents are retired.
func (e *Engine) ReplaceFromRemote(ctx context.Context, coll model.Collection, records []model.Task) error {
	tasks := e.fromRemote(records)
	if err := e.store.ReplaceAll(ctx, coll, tasks); err != nil {
		return fmt.Errorf("replacing %s from remote: %w", coll, err)
	}
	e.logger.Printf("sync: replaced %s with %d remote records", coll, len(tasks))
	return nil
}

// fromRemote prepares fetched records for storage as synced rows.
func (e *Engine) fromRemote(records []model.Task) []model.Task {
	now := e.now()
	tasks := make([]model.Task, 0, len(records))
	for _, r := range records {
		r.LocalID = 0
		r.SyncStatus = model.SyncSynced
		r.SyncAttempts = 0
		r.LastAttemptAt = nil
		r.OriginRemoteID = ""
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
		tasks = append(tasks, r)
	}
	return tasks
}

// RefreshResult describes what Refresh did per collection.
type RefreshResult struct {
	Replaced map[model.Collection]int
	// Skipped lists collections left untouched because they held unsynced
	// records or were written while the fetch was in flight.
	Skipped []model.Collection
	Offline bool
}

// Refresh fetches both collections from the remote and replaces the local
// copies. A collection that holds unsynced records is skipped unless force
// is set, and a collection written to while its fetch was in flight is
// always skipped, so local work is never dropped silently.
func (e *Engine) Refresh(ctx context.Context, force bool) (RefreshResult, error) {
	result := RefreshResult{Replaced: make(map[model.Collection]int)}
	if !e.Online() {
		result.Offline = true
		return result, nil
	}

	fetchers := []struct {
		coll  model.Collection
		fetch func(context.Context) ([]model.Task, error)
	}{
		{model.CollectionTasks, e.gateway.ListTasks},
		{model.CollectionArchived, e.gateway.ListArchivedTasks},
	}

	for _, f := range fetchers {
		guard := store.ReplaceGuard{Version: e.store.Version(f.coll), RequireSynced: !force}
		if !force {
			unsynced, err := e.store.CountUnsynced(ctx, f.coll)
			if err != nil {
				return result, err
			}
			if unsynced > 0 {
				e.logger.Printf("sync: not refreshing %s, %d records unsynced", f.coll, unsynced)
				result.Skipped = append(result.Skipped, f.coll)
				continue
			}
		}

		records, err := f.fetch(ctx)
		if err != nil {
			e.report(ctx, f.coll, 0, fmt.Sprintf("Could not fetch %s: %v", f.coll, err))
			continue
		}
		if f.coll == model.CollectionTasks {
			if records, err = e.withoutArchiving(ctx, records); err != nil {
				return result, err
			}
		}

		tasks := e.fromRemote(records)
		replaced, err := e.store.ReplaceIfUnchanged(ctx, f.coll, tasks, guard)
		if err != nil {
			return result, fmt.Errorf("replacing %s from remote: %w", f.coll, err)
		}
		if !replaced {
			e.logger.Printf("sync: not refreshing %s, it changed during the fetch", f.coll)
			result.Skipped = append(result.Skipped, f.coll)
			continue
		}
		e.logger.Printf("sync: replaced %s with %d remote records", f.coll, len(tasks))
		result.Replaced[f.coll] = len(tasks)
	}

	return result, nil
}

// withoutArchiving drops remote active records that a local archived
// record is still waiting to soft-delete.
func (e *Engine) withoutArchiving(ctx context.Context, records []model.Task) ([]model.Task, error) {
	inFlight, err := e.store.ListWhere(ctx, model.CollectionArchived, store.TaskFilter{
		SyncStatuses: []model.SyncStatus{model.SyncPending, model.SyncError},
	})
	if err != nil {
		return nil, fmt.Errorf("listing unsynced archived tasks: %w", err)
	}

	origins := make(map[string]bool, len(inFlight))
	for _, t := range inFlight {
		if t.OriginRemoteID != "" {
			origins[t.OriginRemoteID] = true
		}
	}
	if len(origins) == 0 {
		return records, nil
	}

	kept := make([]model.Task, 0, len(records))
	for _, r := range records {
		if !origins[r.RemoteID] {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// Unsynced returns how many records in either collection are pending or in
// error.
func (e *Engine) Unsynced(ctx context.Context) (int, error) {
	total := 0
	for _, coll := range []model.Collection{model.CollectionTasks, model.CollectionArchived} {
		n, err := e.store.CountUnsynced(ctx, coll)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// pushOutcome is the result of one reconciliation attempt.
type pushOutcome int

const (
	pushSkipped pushOutcome = iota
	pushSynced
	pushFailed
)

// pushActive reconciles one active task with the remote. The caller holds
// the record lock. Only pending records are pushed; remote failures are
// absorbed into the record and the returned error covers local failures
// only.
func (e *Engine) pushActive(ctx context.Context, id int64) (pushOutcome, error) {
	task, err := e.store.Get(ctx, model.CollectionTasks, id)
	if err != nil {
		return pushSkipped, err
	}
	if task.SyncStatus != model.SyncPending {
		return pushSkipped, nil
	}

	remoteID := task.RemoteID
	var remoteErr error
	if remoteID == "" {
		remoteID, remoteErr = e.gateway.CreateTask(ctx, task.Fields())
	} else {
		remoteErr = e.gateway.UpdateTaskStatus(ctx, remoteID, task.Status)
	}

	if remoteErr != nil {
		return pushFailed, e.markFailed(ctx, model.CollectionTasks, task, remoteErr)
	}
	return pushSynced, e.markSynced(ctx, model.CollectionTasks, id, remoteID)
}

// markSynced attaches remoteID and flips the record to synced.
func (e *Engine) markSynced(ctx context.Context, coll model.Collection, id int64, remoteID string) error {
	synced := model.SyncSynced
	zero := 0
	empty := ""
	now := e.now()
	err := e.store.Update(ctx, coll, id, store.TaskPatch{
		RemoteID:       &remoteID,
		SyncStatus:     &synced,
		SyncAttempts:   &zero,
		LastAttemptAt:  &now,
		OriginRemoteID: &empty,
	})
	if err != nil {
		return fmt.Errorf("marking %s %d synced: %w", coll, id, err)
	}
	return nil
}

// markFailed flips the record to error, counts the attempt and reports the
// failure.
func (e *Engine) markFailed(ctx context.Context, coll model.Collection, task *model.Task, cause error) error {
	failed := model.SyncError
	attempts := task.SyncAttempts + 1
	now := e.now()
	err := e.store.Update(ctx, coll, task.LocalID, store.TaskPatch{
		SyncStatus:    &failed,
		SyncAttempts:  &attempts,
		LastAttemptAt: &now,
	})
	if err != nil {
		return fmt.Errorf("marking %s %d failed: %w", coll, task.LocalID, err)
	}

	e.report(ctx, coll, task.LocalID, fmt.Sprintf("Sync failed for %q: %v", task.Title, cause))
	return nil
}

// report persists a notification and hands it to the Notify hook. Storage
// failures are logged only.
func (e *Engine) report(ctx context.Context, coll model.Collection, id int64, message string) {
	n := model.Notification{
		Collection: coll,
		LocalID:    id,
		Message:    message,
		CreatedAt:  e.now(),
	}

	e.logger.Printf("sync: %s", message)
	if err := e.store.CreateNotification(ctx, n); err != nil {
		e.logger.Printf("sync: storing notification: %v", err)
	}
	if e.notify != nil {
		e.notify(n)
	}
}
