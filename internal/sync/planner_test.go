package sync

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/efficio/internal/model"
)

func TestPlannerSaveValidates(t *testing.T) {
	h := newHarness(t, true)
	p := NewPlanner(h.engine)

	tests := []struct {
		name  string
		block model.TimeBlock
		field string
	}{
		{"empty title", model.TimeBlock{Time: "09:00", Duration: "1h"}, "title"},
		{"bad time", model.TimeBlock{Title: "x", Time: "9am", Duration: "1h"}, "time"},
		{"no duration", model.TimeBlock{Title: "x", Time: "09:00"}, "duration"},
		{"bad date", model.TimeBlock{Title: "x", Time: "09:00", Duration: "1h", Date: "17/10/2026"}, "date"},
		{"bad type", model.TimeBlock{Title: "x", Time: "09:00", Duration: "1h", Type: "nap"}, "type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Save(context.Background(), tt.block)
			valErr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if valErr.Field != tt.field {
				t.Errorf("field = %q, want %q", valErr.Field, tt.field)
			}
		})
	}
}

func TestPlannerSaveOnlineSyncsNewBlocks(t *testing.T) {
	h := newHarness(t, true)
	p := NewPlanner(h.engine)
	ctx := context.Background()

	block, err := p.Save(ctx, model.TimeBlock{
		Title: "Deep work", Time: "09:00", Duration: "90m", TaskIDs: []int64{2},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !block.Synced || block.RemoteID == "" {
		t.Errorf("block = %+v, want synced", block)
	}
	if block.Date != "2026-10-17" || block.Type != model.BlockFocus {
		t.Errorf("defaults not applied: %+v", block)
	}
	if len(h.gateway.blocks) != 1 {
		t.Fatalf("remote blocks = %d, want 1", len(h.gateway.blocks))
	}

	// Editing a synced block stays local.
	block.Title = "Deeper work"
	if _, err := p.Save(ctx, *block); err != nil {
		t.Fatalf("Save edit: %v", err)
	}
	if len(h.gateway.blocks) != 1 {
		t.Errorf("edit created another remote block")
	}
}

func TestPlannerSaveOfflineOrFailingStaysUnsynced(t *testing.T) {
	h := newHarness(t, false)
	p := NewPlanner(h.engine)
	ctx := context.Background()

	block, err := p.Save(ctx, model.TimeBlock{Title: "Standup", Time: "08:30", Duration: "15m", Type: model.BlockMeeting})
	if err != nil {
		t.Fatalf("Save offline: %v", err)
	}
	if block.Synced {
		t.Error("block synced while offline")
	}

	h.conn.Set(true)
	h.gateway.failBlock = errRemote
	block, err = p.Save(ctx, *block)
	if err != nil {
		t.Fatalf("Save with failing remote: %v", err)
	}
	if block.Synced {
		t.Error("block synced despite remote failure")
	}
	if len(h.notices) != 1 {
		t.Errorf("notices = %d, want 1", len(h.notices))
	}
}

func TestReconnectRetriesUnsyncedBlocks(t *testing.T) {
	h := newHarness(t, false)
	p := NewPlanner(h.engine)
	ctx := context.Background()

	block, err := p.Save(ctx, model.TimeBlock{Title: "Review", Time: "14:00", Duration: "30m"})
	if err != nil {
		t.Fatalf("Save offline: %v", err)
	}

	h.conn.Set(true)
	h.gateway.set(func(g *fakeGateway) { g.failBlock = errRemote })
	res, err := h.engine.Reconnect(ctx)
	if err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if res.BlocksFailed != 1 || res.BlocksSynced != 0 {
		t.Errorf("result = %+v, want one failed block", res)
	}
	if len(h.notices) != 0 {
		t.Errorf("retry raised %d notices, want none", len(h.notices))
	}

	h.gateway.set(func(g *fakeGateway) { g.failBlock = nil })
	res, err = h.engine.Reconnect(ctx)
	if err != nil {
		t.Fatalf("second Reconnect: %v", err)
	}
	if res.BlocksSynced != 1 {
		t.Errorf("result = %+v, want one synced block", res)
	}

	got, err := h.store.GetTimeBlock(ctx, block.ID)
	if err != nil {
		t.Fatalf("GetTimeBlock: %v", err)
	}
	if !got.Synced || got.RemoteID == "" {
		t.Errorf("block = %+v, want synced", got)
	}

	// Already synced blocks are not sent again.
	if _, err := h.engine.Reconnect(ctx); err != nil {
		t.Fatalf("third Reconnect: %v", err)
	}
	if len(h.gateway.blocks) != 1 {
		t.Errorf("remote blocks = %d, want 1", len(h.gateway.blocks))
	}
}

func TestPlannerToggleDeleteAndForDate(t *testing.T) {
	h := newHarness(t, false)
	p := NewPlanner(h.engine)
	ctx := context.Background()

	a, _ := p.Save(ctx, model.TimeBlock{Title: "Late", Time: "15:00", Duration: "1h"})
	if _, err := p.Save(ctx, model.TimeBlock{Title: "Early", Time: "07:00", Duration: "1h"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	toggled, err := p.ToggleCompleted(ctx, a.ID)
	if err != nil {
		t.Fatalf("ToggleCompleted: %v", err)
	}
	if !toggled.Completed {
		t.Error("block not completed after toggle")
	}

	blocks, err := p.ForDate(ctx, fixedNow)
	if err != nil {
		t.Fatalf("ForDate: %v", err)
	}
	if len(blocks) != 2 || blocks[0].Title != "Early" {
		t.Fatalf("blocks = %+v, want Early first", blocks)
	}

	if err := p.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	blocks, _ = p.ForDate(ctx, fixedNow)
	if len(blocks) != 1 {
		t.Errorf("got %d blocks after delete, want 1", len(blocks))
	}
}

func TestWeekIsCentered(t *testing.T) {
	center := time.Date(2026, 10, 1, 15, 0, 0, 0, time.UTC)
	days := Week(center)

	if len(days) != 7 {
		t.Fatalf("got %d days, want 7", len(days))
	}
	if got := days[0].Format(model.DateLayout); got != "2026-09-28" {
		t.Errorf("first day = %s, want 2026-09-28", got)
	}
	if got := days[3].Format(model.DateLayout); got != "2026-10-01" {
		t.Errorf("middle day = %s, want 2026-10-01", got)
	}
	if got := days[6].Format(model.DateLayout); got != "2026-10-04" {
		t.Errorf("last day = %s, want 2026-10-04", got)
	}
}
