package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/efficio/internal/model"
	"github.com/nhle/efficio/internal/store"
)

// clockLayout is the HH:MM format of a time block's start.
const clockLayout = "15:04"

// Planner manages time blocks on the schedule. Blocks are stored locally;
// new blocks are also created remotely when online.
type Planner struct {
	engine *Engine
}

// NewPlanner creates a Planner sharing e's store, gateway and
// connectivity.
func NewPlanner(e *Engine) *Planner {
	return &Planner{engine: e}
}

// Save validates and stores block. A block that has not been sent to the
// remote yet is created there when online; a failure is reported as a
// notification and the block stays unsynced.
func (p *Planner) Save(ctx context.Context, block model.TimeBlock) (*model.TimeBlock, error) {
	block.Title = strings.TrimSpace(block.Title)
	if block.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if _, err := time.Parse(clockLayout, block.Time); err != nil {
		return nil, &ValidationError{Field: "time", Reason: fmt.Sprintf("%q is not HH:MM", block.Time)}
	}
	if strings.TrimSpace(block.Duration) == "" {
		return nil, &ValidationError{Field: "duration", Reason: "must not be empty"}
	}
	if block.Date == "" {
		block.Date = p.engine.now().Format(model.DateLayout)
	}
	if _, err := time.Parse(model.DateLayout, block.Date); err != nil {
		return nil, &ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not YYYY-MM-DD", block.Date)}
	}
	if block.Type == "" {
		block.Type = model.BlockFocus
	}
	if !model.ValidBlockType(block.Type) {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown block type %q", block.Type)}
	}

	if block.ID == "" {
		block.ID = uuid.New().String()
	}

	s := p.engine.store
	if err := s.SaveTimeBlock(ctx, block); err != nil {
		return nil, err
	}
	saved, err := s.GetTimeBlock(ctx, block.ID)
	if err != nil {
		return nil, err
	}

	if saved.Synced || !p.engine.Online() {
		return saved, nil
	}

	if _, err := p.engine.pushTimeBlock(ctx, saved.ID, true); err != nil {
		return nil, err
	}
	return s.GetTimeBlock(ctx, saved.ID)
}

// SyncTimeBlocks creates every block the remote has not seen yet. Failures
// are logged and the block waits for the next call; the first failure of a
// block was already reported when it was saved.
func (e *Engine) SyncTimeBlocks(ctx context.Context) (synced, failed int, err error) {
	if !e.Online() {
		return 0, 0, nil
	}

	blocks, err := e.store.ListTimeBlocks(ctx, "")
	if err != nil {
		return 0, 0, err
	}
	for _, b := range blocks {
		if b.Synced {
			continue
		}
		outcome, err := e.pushTimeBlock(ctx, b.ID, false)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return synced, failed, err
		}
		switch outcome {
		case pushSynced:
			synced++
		case pushFailed:
			failed++
		}
	}
	return synced, failed, nil
}

// pushTimeBlock creates block id remotely unless it is already synced.
// A remote failure leaves the block unsynced and is reported as a
// notification when report is set, logged otherwise.
func (e *Engine) pushTimeBlock(ctx context.Context, id string, report bool) (pushOutcome, error) {
	e.blockMu.Lock()
	defer e.blockMu.Unlock()

	block, err := e.store.GetTimeBlock(ctx, id)
	if err != nil {
		return pushSkipped, err
	}
	if block.Synced {
		return pushSkipped, nil
	}

	remoteID, err := e.gateway.CreateTimeBlock(ctx, *block)
	if err != nil {
		msg := fmt.Sprintf("Could not save time block %q: %v", block.Title, err)
		if report {
			e.report(ctx, "", 0, msg)
		} else {
			e.logger.Printf("sync: %s", msg)
		}
		return pushFailed, nil
	}
	if err := e.store.MarkTimeBlockSynced(ctx, id, remoteID); err != nil {
		return pushSkipped, err
	}
	return pushSynced, nil
}

// Delete removes a block locally.
func (p *Planner) Delete(ctx context.Context, id string) error {
	return p.engine.store.DeleteTimeBlock(ctx, id)
}

// ToggleCompleted flips a block's completed flag locally.
func (p *Planner) ToggleCompleted(ctx context.Context, id string) (*model.TimeBlock, error) {
	block, err := p.engine.store.GetTimeBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	block.Completed = !block.Completed
	if err := p.engine.store.SaveTimeBlock(ctx, *block); err != nil {
		return nil, err
	}
	return p.engine.store.GetTimeBlock(ctx, id)
}

// ForDate returns the blocks on day ordered by start time.
func (p *Planner) ForDate(ctx context.Context, day time.Time) ([]model.TimeBlock, error) {
	return p.engine.store.ListTimeBlocks(ctx, day.Format(model.DateLayout))
}

// Week returns seven consecutive days with center in the middle.
func Week(center time.Time) []time.Time {
	y, m, d := center.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, center.Location()).AddDate(0, 0, -3)

	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}
