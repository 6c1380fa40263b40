package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/efficio/internal/model"
	"github.com/nhle/efficio/internal/store"
)

// Archive moves an active task into the archived collection as completed
// and pending. The local move is final; remote archive creation and the
// soft-delete of the original are attempted afterwards when online, and a
// failure only marks the archived copy as error.
func (e *Engine) Archive(ctx context.Context, localID int64) (*model.Task, error) {
	unlock := e.locks.lock(model.CollectionTasks, localID)
	task, err := e.store.Get(ctx, model.CollectionTasks, localID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("archiving task %d: %w", localID, err)
	}

	completed := model.StatusCompleted
	pending := model.SyncPending
	now := e.now()
	empty := ""
	zero := 0
	origin := task.RemoteID

	archivedID, err := e.store.Move(ctx, model.CollectionTasks, model.CollectionArchived, localID, store.TaskPatch{
		RemoteID:       &empty,
		Status:         &completed,
		SyncStatus:     &pending,
		UpdatedAt:      &now,
		OriginRemoteID: &origin,
		SyncAttempts:   &zero,
	})
	unlock()
	if err != nil {
		return nil, fmt.Errorf("archiving task %d: %w", localID, err)
	}
	e.logger.Printf("sync: archived task %d as %d", localID, archivedID)

	if e.Online() {
		unlockArchived := e.locks.lock(model.CollectionArchived, archivedID)
		_, err = e.pushArchived(ctx, archivedID)
		unlockArchived()
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	return e.store.Get(ctx, model.CollectionArchived, archivedID)
}

// pushArchived reconciles one archived record: create it in the remote
// archive if needed, then soft-delete its active origin. The caller holds
// the record lock.
func (e *Engine) pushArchived(ctx context.Context, id int64) (pushOutcome, error) {
	task, err := e.store.Get(ctx, model.CollectionArchived, id)
	if err != nil {
		return pushSkipped, err
	}
	if task.SyncStatus != model.SyncPending {
		return pushSkipped, nil
	}

	remoteID := task.RemoteID
	if remoteID == "" {
		remoteID, err = e.gateway.CreateArchivedTask(ctx, task.Fields())
		if err != nil {
			return pushFailed, e.markFailed(ctx, model.CollectionArchived, task, err)
		}
		// Recorded now so a failed soft-delete is retried without creating
		// a second archive entry.
		if err := e.store.Update(ctx, model.CollectionArchived, id, store.TaskPatch{RemoteID: &remoteID}); err != nil {
			return pushSkipped, fmt.Errorf("recording archive id for %d: %w", id, err)
		}
		task.RemoteID = remoteID
	}

	if task.OriginRemoteID != "" {
		if err := e.gateway.SoftDeleteTask(ctx, task.OriginRemoteID); err != nil {
			return pushFailed, e.markFailed(ctx, model.CollectionArchived, task, err)
		}
	}

	return pushSynced, e.markSynced(ctx, model.CollectionArchived, id, remoteID)
}

// AutoArchive archives every completed active task whose due date is more
// than ArchiveAfterDays calendar days before now. Tasks without a due date
// are never archived. It returns how many tasks were moved.
func (e *Engine) AutoArchive(ctx context.Context, now time.Time) (int, error) {
	hasDue := true
	candidates, err := e.store.ListWhere(ctx, model.CollectionTasks, store.TaskFilter{
		Statuses:   []model.Status{model.StatusCompleted},
		HasDueDate: &hasDue,
	})
	if err != nil {
		return 0, fmt.Errorf("listing archive candidates: %w", err)
	}

	archived := 0
	for _, task := range candidates {
		if !archiveDue(task.DueDate, now, e.opts.ArchiveAfterDays) {
			continue
		}
		if _, err := e.Archive(ctx, task.LocalID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return archived, err
		}
		archived++
	}

	if archived > 0 {
		e.logger.Printf("sync: auto-archived %d tasks", archived)
	}
	return archived, nil
}

// archiveDue reports whether due lies more than afterDays calendar days
// before now. Only the calendar dates are compared.
func archiveDue(due *time.Time, now time.Time, afterDays int) bool {
	if due == nil {
		return false
	}
	return calendarDaysBetween(*due, now) > afterDays
}

// calendarDaysBetween counts calendar days from a to b, each taken in its
// own location.
func calendarDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	end := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}
