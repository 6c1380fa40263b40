package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/efficio/internal/model"
	"github.com/nhle/efficio/internal/store"
)

// SweepResult counts what one sweep did.
type SweepResult struct {
	Attempted int
	Synced    int
	Failed    int
	// BlocksSynced and BlocksFailed count time blocks retried on
	// reconnect.
	BlocksSynced int
	BlocksFailed int
	// Offline is set when the sweep did not run, or stopped early,
	// because connectivity was lost.
	Offline bool
}

// Sweep pushes every pending record, active collection first, in local id
// order. A failure marks that record as error and the sweep moves on.
// Records in the error state are left alone, so running Sweep twice with
// no change in between leaves the store as the first run did.
func (e *Engine) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	if !e.Online() {
		result.Offline = true
		return result, nil
	}

	passes := []struct {
		coll model.Collection
		push func(context.Context, int64) (pushOutcome, error)
	}{
		{model.CollectionTasks, e.pushActive},
		{model.CollectionArchived, e.pushArchived},
	}

	for _, pass := range passes {
		pending, err := e.store.ListWhere(ctx, pass.coll, store.TaskFilter{
			SyncStatuses: []model.SyncStatus{model.SyncPending},
			SortBy:       "local_id",
		})
		if err != nil {
			return result, fmt.Errorf("listing pending %s: %w", pass.coll, err)
		}

		for _, task := range pending {
			if !e.Online() {
				result.Offline = true
				return result, nil
			}

			unlock := e.locks.lock(pass.coll, task.LocalID)
			outcome, err := pass.push(ctx, task.LocalID)
			unlock()

			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return result, err
			}

			switch outcome {
			case pushSynced:
				result.Attempted++
				result.Synced++
			case pushFailed:
				result.Attempted++
				result.Failed++
			}
		}
	}

	if result.Attempted > 0 {
		e.logger.Printf("sync: sweep attempted=%d synced=%d failed=%d",
			result.Attempted, result.Synced, result.Failed)
	}
	return result, nil
}

// RequeueFailed returns error records to pending once their backoff window
// has passed, as long as they have not used up MaxAttempts. It returns how
// many records were re-queued.
func (e *Engine) RequeueFailed(ctx context.Context) (int, error) {
	now := e.now()
	requeued := 0

	for _, coll := range []model.Collection{model.CollectionTasks, model.CollectionArchived} {
		failed, err := e.store.ListWhere(ctx, coll, store.TaskFilter{
			SyncStatuses: []model.SyncStatus{model.SyncError},
			SortBy:       "local_id",
		})
		if err != nil {
			return requeued, fmt.Errorf("listing failed %s: %w", coll, err)
		}

		for _, task := range failed {
			if !e.retryDue(task, now) {
				continue
			}

			ok, err := e.requeue(ctx, coll, task.LocalID)
			if err != nil {
				return requeued, err
			}
			if ok {
				requeued++
			}
		}
	}

	return requeued, nil
}

// requeue flips one record from error back to pending under its lock.
func (e *Engine) requeue(ctx context.Context, coll model.Collection, id int64) (bool, error) {
	unlock := e.locks.lock(coll, id)
	defer unlock()

	current, err := e.store.Get(ctx, coll, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if current.SyncStatus != model.SyncError {
		return false, nil
	}

	pending := model.SyncPending
	if err := e.store.Update(ctx, coll, id, store.TaskPatch{SyncStatus: &pending}); err != nil {
		return false, fmt.Errorf("re-queueing %s %d: %w", coll, id, err)
	}
	return true, nil
}

// retryDue reports whether a failed record may be retried at now.
func (e *Engine) retryDue(task model.Task, now time.Time) bool {
	if task.SyncAttempts >= e.opts.MaxAttempts {
		return false
	}
	if task.LastAttemptAt == nil {
		return true
	}
	return !now.Before(task.LastAttemptAt.Add(e.backoff(task.SyncAttempts)))
}

// backoff is BaseBackoff doubled per previous attempt, capped at
// MaxBackoff.
func (e *Engine) backoff(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	d := e.opts.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= e.opts.MaxBackoff {
			return e.opts.MaxBackoff
		}
	}
	if d > e.opts.MaxBackoff {
		return e.opts.MaxBackoff
	}
	return d
}

// Reconnect re-queues failed records whose backoff has elapsed and then
// sweeps. It is the handler the connectivity monitor runs on reconnect.
func (e *Engine) Reconnect(ctx context.Context) (SweepResult, error) {
	requeued, err := e.RequeueFailed(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	if requeued > 0 {
		e.logger.Printf("sync: re-queued %d failed records", requeued)
	}

	result, err := e.Sweep(ctx)
	if err != nil || result.Offline {
		return result, err
	}
	result.BlocksSynced, result.BlocksFailed, err = e.SyncTimeBlocks(ctx)
	return result, err
}
