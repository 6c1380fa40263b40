package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nhle/efficio/internal/model"
)

func TestPollerTriggerRunsPass(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.conn.Set(false)
	if _, err := h.engine.CreateTask(ctx, model.TaskFields{Title: "queued"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	h.conn.Set(true)

	p := NewPoller(h.engine, time.Hour)
	wait := p.Start()
	defer p.Stop()

	if again := p.Start(); again != nil {
		t.Error("second Start returned a command")
	}

	p.Trigger()

	done := make(chan SyncResultMsg, 1)
	go func() { done <- wait().(SyncResultMsg) }()

	select {
	case msg := <-done:
		if msg.Error != nil {
			t.Fatalf("pass error: %v", msg.Error)
		}
		if msg.Sweep.Synced != 1 {
			t.Errorf("sweep = %+v, want one synced", msg.Sweep)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no result after Trigger")
	}

	if st := p.Status(); st.State != PollIdle || st.LastSync.IsZero() {
		t.Errorf("status = %+v, want idle with last sync", st)
	}
}

func TestRecordLocksSerialize(t *testing.T) {
	locks := newRecordLocks()
	unlock := locks.lock(model.CollectionTasks, 1)

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		release := locks.lock(model.CollectionTasks, 1)
		close(acquired)
		release()
		close(released)
	}()

	// A different record is independent.
	other := locks.lock(model.CollectionTasks, 2)
	other()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second lock never acquired")
	}
	<-released

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.entries) != 0 {
		t.Errorf("%d lock entries leaked", len(locks.entries))
	}
}

func TestPollerOfflinePassWaitsForConnection(t *testing.T) {
	h := newHarness(t, false)

	p := NewPoller(h.engine, time.Hour)
	wait := p.Start()
	defer p.Stop()

	p.Trigger()

	done := make(chan SyncResultMsg, 1)
	go func() { done <- wait().(SyncResultMsg) }()

	select {
	case msg := <-done:
		if msg.Error != nil {
			t.Fatalf("offline pass reported error %v", msg.Error)
		}
		if !msg.Sweep.Offline || !msg.Refresh.Offline {
			t.Errorf("result = %+v, want offline", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no result after Trigger")
	}

	st := p.Status()
	if !errors.Is(st.Error, ErrOffline) || !st.LastSync.IsZero() {
		t.Errorf("status = %+v, want offline without last sync", st)
	}
}
