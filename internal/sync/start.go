package sync

import (
	"context"
	"fmt"
)

// StartResult summarizes the start-up sequence.
type StartResult struct {
	Archived int
	Sweep    SweepResult
	Refresh  RefreshResult
}

// Start runs the start-up sequence: the archival sweep, then, when online,
// the retry sweep and unsynced time blocks followed by a refresh from the
// remote. Pending local
// changes are pushed before the refresh replaces the collections.
func (e *Engine) Start(ctx context.Context) (StartResult, error) {
	var result StartResult

	archived, err := e.AutoArchive(ctx, e.now())
	if err != nil {
		return result, fmt.Errorf("start-up archive: %w", err)
	}
	result.Archived = archived

	if !e.Online() {
		result.Sweep.Offline = true
		result.Refresh.Offline = true
		e.logger.Printf("sync: starting offline")
		return result, nil
	}

	result.Sweep, err = e.Sweep(ctx)
	if err != nil {
		return result, fmt.Errorf("start-up sweep: %w", err)
	}
	result.Sweep.BlocksSynced, result.Sweep.BlocksFailed, err = e.SyncTimeBlocks(ctx)
	if err != nil {
		return result, fmt.Errorf("start-up time blocks: %w", err)
	}

	result.Refresh, err = e.Refresh(ctx, false)
	if err != nil {
		return result, fmt.Errorf("start-up refresh: %w", err)
	}
	return result, nil
}
