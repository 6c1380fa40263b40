package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nhle/efficio/internal/model"
	"github.com/nhle/efficio/internal/store"
	"github.com/nhle/efficio/tests/testutil"
)

func ptr[T any](v T) *T { return &v }

func TestInsertAndGet(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	due := time.Date(2026, 3, 14, 0, 0, 0, 0, time.Local)
	id, err := s.Insert(ctx, model.CollectionTasks, model.Task{
		Title:    "  Write report ",
		Priority: "HIGH",
		DueDate:  &due,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id == 0 {
		t.Fatal("Insert returned zero id")
	}

	got, err := s.Get(ctx, model.CollectionTasks, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Write report" {
		t.Errorf("Title = %q, want trimmed", got.Title)
	}
	if got.Category != model.DefaultCategory {
		t.Errorf("Category = %q, want %q", got.Category, model.DefaultCategory)
	}
	if got.Priority != model.PriorityHigh {
		t.Errorf("Priority = %q, want high", got.Priority)
	}
	if got.Status != model.StatusPending || got.SyncStatus != model.SyncPending {
		t.Errorf("Status/SyncStatus = %q/%q, want pending/pending", got.Status, got.SyncStatus)
	}
	if got.DueDateString() != "2026-03-14" {
		t.Errorf("DueDate = %q, want 2026-03-14", got.DueDateString())
	}
	if got.RemoteID != "" {
		t.Errorf("RemoteID = %q, want empty", got.RemoteID)
	}
}

func TestInsertRejectsEmptyTitle(t *testing.T) {
	s := testutil.NewTestStore(t)

	if _, err := s.Insert(context.Background(), model.CollectionTasks, model.Task{Title: "   "}); err == nil {
		t.Fatal("expected error for blank title")
	}
}

func TestUnknownCollection(t *testing.T) {
	s := testutil.NewTestStore(t)

	if _, err := s.ListAll(context.Background(), model.Collection("habits")); err == nil {
		t.Fatal("expected error for unknown collection")
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.Get(context.Background(), model.CollectionTasks, 42)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}
}

func TestUpdatePartialFields(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, model.CollectionTasks, model.Task{Title: "A", Category: "Work"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	err = s.Update(ctx, model.CollectionTasks, id, store.TaskPatch{
		RemoteID:   ptr("abc"),
		SyncStatus: ptr(model.SyncSynced),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := s.Get(ctx, model.CollectionTasks, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RemoteID != "abc" || got.SyncStatus != model.SyncSynced {
		t.Errorf("got remote=%q sync=%q, want abc/synced", got.RemoteID, got.SyncStatus)
	}
	if got.Category != "Work" || got.Title != "A" {
		t.Errorf("untouched fields changed: %+v", got)
	}
	if !got.Reconciled() {
		t.Error("expected record to be reconciled")
	}
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	s := testutil.NewTestStore(t)

	err := s.Update(context.Background(), model.CollectionTasks, 7, store.TaskPatch{
		Status: ptr(model.StatusCompleted),
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Update error = %v, want ErrNotFound", err)
	}
}

func TestDeleteAndIDsAreNotReused(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	first, err := s.Insert(ctx, model.CollectionTasks, model.Task{Title: "first"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Delete(ctx, model.CollectionTasks, first); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, model.CollectionTasks, first); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second Delete error = %v, want ErrNotFound", err)
	}
	if err := s.Clear(ctx, model.CollectionTasks); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	second, err := s.Insert(ctx, model.CollectionTasks, model.Task{Title: "second"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if second <= first {
		t.Errorf("id %d reused or went backwards after delete of %d", second, first)
	}
}

func TestListWhere(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local)
	fresh := time.Date(2026, 6, 1, 0, 0, 0, 0, time.Local)
	seed := []model.Task{
		{Title: "a", Status: model.StatusCompleted, SyncStatus: model.SyncSynced, RemoteID: "r1", DueDate: &old},
		{Title: "b", Status: model.StatusPending, SyncStatus: model.SyncPending},
		{Title: "c", Status: model.StatusInProgress, SyncStatus: model.SyncError, Category: "Home", DueDate: &fresh},
		{Title: "d", Status: model.StatusCompleted, SyncStatus: model.SyncPending, Priority: model.PriorityHigh},
	}
	for _, task := range seed {
		if _, err := s.Insert(ctx, model.CollectionTasks, task); err != nil {
			t.Fatalf("Insert %s: %v", task.Title, err)
		}
	}

	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)
	tests := []struct {
		name   string
		filter store.TaskFilter
		want   []string
	}{
		{"all", store.TaskFilter{}, []string{"a", "b", "c", "d"}},
		{"unsynced", store.TaskFilter{SyncStatuses: []model.SyncStatus{model.SyncPending, model.SyncError}}, []string{"b", "c", "d"}},
		{"completed", store.TaskFilter{Statuses: []model.Status{model.StatusCompleted}}, []string{"a", "d"}},
		{"category", store.TaskFilter{Category: ptr("Home")}, []string{"c"}},
		{"priority", store.TaskFilter{Priority: ptr(model.PriorityHigh)}, []string{"d"}},
		{"remote id", store.TaskFilter{RemoteID: ptr("r1")}, []string{"a"}},
		{"local only", store.TaskFilter{HasRemoteID: ptr(false)}, []string{"b", "c", "d"}},
		{"no due date", store.TaskFilter{HasDueDate: ptr(false)}, []string{"b", "d"}},
		{"due before", store.TaskFilter{DueBefore: &cutoff}, []string{"a"}},
		{"sorted desc limited", store.TaskFilter{SortBy: "title", SortDesc: true, Limit: 2}, []string{"d", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListWhere(ctx, model.CollectionTasks, tt.filter)
			if err != nil {
				t.Fatalf("ListWhere: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d tasks, want %d", len(got), len(tt.want))
			}
			for i, task := range got {
				if task.Title != tt.want[i] {
					t.Errorf("task[%d] = %q, want %q", i, task.Title, tt.want[i])
				}
			}
		})
	}
}

func TestReplaceAll(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, model.CollectionTasks, model.Task{Title: "stale"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	err := s.ReplaceAll(ctx, model.CollectionTasks, []model.Task{
		{Title: "x", RemoteID: "r-x", SyncStatus: model.SyncSynced},
		{Title: "y", RemoteID: "r-y", SyncStatus: model.SyncSynced},
	})
	if err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	got, err := s.ListAll(ctx, model.CollectionTasks)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(got) != 2 || got[0].Title != "x" || got[1].Title != "y" {
		t.Fatalf("unexpected tasks after replace: %+v", got)
	}
}

func TestReplaceAllIsAtomic(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, model.CollectionTasks, model.Task{Title: "keep"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	err := s.ReplaceAll(ctx, model.CollectionTasks, []model.Task{
		{Title: "ok"},
		{Title: ""},
	})
	if err == nil {
		t.Fatal("expected error for blank title in batch")
	}

	got, err := s.ListAll(ctx, model.CollectionTasks)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(got) != 1 || got[0].Title != "keep" {
		t.Fatalf("partial replace observable: %+v", got)
	}
}

func TestReplaceIfUnchanged(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	remote := []model.Task{{Title: "remote", RemoteID: "r-1", SyncStatus: model.SyncSynced}}

	version := s.Version(model.CollectionTasks)
	id, err := s.Insert(ctx, model.CollectionTasks, model.Task{Title: "written meanwhile"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if s.Version(model.CollectionTasks) == version {
		t.Fatal("Insert did not change the version")
	}
	if s.Version(model.CollectionArchived) != 0 {
		t.Error("Insert changed the archived version")
	}

	ok, err := s.ReplaceIfUnchanged(ctx, model.CollectionTasks, remote, store.ReplaceGuard{Version: version})
	if err != nil || ok {
		t.Fatalf("stale replace = %v, %v; want refused", ok, err)
	}

	// Current version, but the pending row still blocks a guarded replace.
	guard := store.ReplaceGuard{Version: s.Version(model.CollectionTasks), RequireSynced: true}
	ok, err = s.ReplaceIfUnchanged(ctx, model.CollectionTasks, remote, guard)
	if err != nil || ok {
		t.Fatalf("replace over pending row = %v, %v; want refused", ok, err)
	}
	if _, err := s.Get(ctx, model.CollectionTasks, id); err != nil {
		t.Fatalf("pending row gone after refused replace: %v", err)
	}

	synced := model.SyncSynced
	if err := s.Update(ctx, model.CollectionTasks, id, store.TaskPatch{SyncStatus: &synced}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	guard.Version = s.Version(model.CollectionTasks)
	ok, err = s.ReplaceIfUnchanged(ctx, model.CollectionTasks, remote, guard)
	if err != nil || !ok {
		t.Fatalf("clean replace = %v, %v; want replaced", ok, err)
	}

	got, err := s.ListAll(ctx, model.CollectionTasks)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(got) != 1 || got[0].RemoteID != "r-1" {
		t.Errorf("tasks after replace = %+v", got)
	}
}

func TestMove(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, model.CollectionTasks, model.Task{
		Title: "done", RemoteID: "r1", SyncStatus: model.SyncSynced,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	newID, err := s.Move(ctx, model.CollectionTasks, model.CollectionArchived, id, store.TaskPatch{
		Status:         ptr(model.StatusCompleted),
		SyncStatus:     ptr(model.SyncPending),
		RemoteID:       ptr(""),
		OriginRemoteID: ptr("r1"),
	})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}

	if _, err := s.Get(ctx, model.CollectionTasks, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("task still in active collection: %v", err)
	}
	archived, err := s.Get(ctx, model.CollectionArchived, newID)
	if err != nil {
		t.Fatalf("Get archived: %v", err)
	}
	if archived.Status != model.StatusCompleted || archived.SyncStatus != model.SyncPending {
		t.Errorf("archived status = %q/%q", archived.Status, archived.SyncStatus)
	}
	if archived.OriginRemoteID != "r1" || archived.RemoteID != "" {
		t.Errorf("archived ids = remote %q origin %q", archived.RemoteID, archived.OriginRemoteID)
	}
}

func TestMoveMissingLeavesStoreUntouched(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.Move(ctx, model.CollectionTasks, model.CollectionArchived, 99, store.TaskPatch{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Move error = %v, want ErrNotFound", err)
	}
	archived, err := s.ListAll(ctx, model.CollectionArchived)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(archived) != 0 {
		t.Fatalf("archived collection not empty: %+v", archived)
	}
}

func TestCountUnsynced(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	for _, st := range []model.SyncStatus{model.SyncPending, model.SyncSynced, model.SyncError} {
		if _, err := s.Insert(ctx, model.CollectionTasks, model.Task{Title: string(st), SyncStatus: st}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	n, err := s.CountUnsynced(ctx, model.CollectionTasks)
	if err != nil {
		t.Fatalf("CountUnsynced: %v", err)
	}
	if n != 2 {
		t.Errorf("CountUnsynced = %d, want 2", n)
	}
}

func TestSubscribeReceivesWrites(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	events, cancel := s.Subscribe()
	defer cancel()

	id, err := s.Insert(ctx, model.CollectionTasks, model.Task{Title: "watched"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Update(ctx, model.CollectionTasks, id, store.TaskPatch{Status: ptr(model.StatusInProgress)}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := []store.ChangeEvent{
		{Collection: model.CollectionTasks, LocalID: id, Op: store.OpInsert},
		{Collection: model.CollectionTasks, LocalID: id, Op: store.OpUpdate},
	}
	for i, w := range want {
		select {
		case got := <-events:
			if got != w {
				t.Errorf("event[%d] = %+v, want %+v", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	cancel()
	if _, ok := <-events; ok {
		t.Error("channel still open after cancel")
	}
}

func TestNotifications(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	err := s.CreateNotification(ctx, model.Notification{
		Collection: model.CollectionTasks,
		LocalID:    3,
		Message:    "sync failed",
	})
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}

	unread, err := s.GetUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("GetUnreadNotifications: %v", err)
	}
	if len(unread) != 1 || unread[0].Message != "sync failed" || unread[0].ID == "" {
		t.Fatalf("unexpected notifications: %+v", unread)
	}

	if err := s.MarkNotificationRead(ctx, unread[0].ID); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	unread, err = s.GetUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("GetUnreadNotifications: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("still %d unread", len(unread))
	}
}
