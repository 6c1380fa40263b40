package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"

	"github.com/nhle/efficio/internal/gateway"
	"github.com/nhle/efficio/internal/model"
)

var errRemote = errors.New("remote exploded")

// fakeGateway is a scripted in-memory remote.
type fakeGateway struct {
	mu gosync.Mutex

	seq     int
	nextIDs []string
	active  map[string]model.Task
	order   []string
	archive []model.Task

	createCalls     int
	archiveCalls    int
	statusUpdates   map[string]model.Status
	softDeleted     []string
	failCreateTitle map[string]bool
	failCreate      error
	failUpdate      error
	failSoftDelete  error
	failArchive     error
	failList        error

	// onListTasks runs inside ListTasks before the remote list is read,
	// standing in for work that lands while a fetch is in flight.
	onListTasks func()

	habits    []model.Habit
	habitDone map[string]bool
	failHabit map[string]bool

	blocks    []model.TimeBlock
	failBlock error
}

var _ gateway.Gateway = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		active:          make(map[string]model.Task),
		statusUpdates:   make(map[string]model.Status),
		failCreateTitle: make(map[string]bool),
		habitDone:       make(map[string]bool),
		failHabit:       make(map[string]bool),
	}
}

func (g *fakeGateway) nextID() string {
	if len(g.nextIDs) > 0 {
		id := g.nextIDs[0]
		g.nextIDs = g.nextIDs[1:]
		return id
	}
	g.seq++
	return fmt.Sprintf("remote-%d", g.seq)
}

func (g *fakeGateway) Ping(ctx context.Context) error { return nil }

func (g *fakeGateway) ListTasks(ctx context.Context) ([]model.Task, error) {
	g.mu.Lock()
	hook := g.onListTasks
	g.mu.Unlock()
	if hook != nil {
		hook()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failList != nil {
		return nil, g.failList
	}
	tasks := make([]model.Task, 0, len(g.order))
	for _, id := range g.order {
		if t, ok := g.active[id]; ok {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (g *fakeGateway) CreateTask(ctx context.Context, f model.TaskFields) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	if g.failCreate != nil {
		return "", g.failCreate
	}
	if g.failCreateTitle[f.Title] {
		return "", errRemote
	}
	id := g.nextID()
	g.active[id] = model.Task{
		RemoteID: id, Title: f.Title, Category: f.Category,
		Priority: f.Priority, DueDate: f.DueDate, Status: f.Status,
	}
	g.order = append(g.order, id)
	return id, nil
}

func (g *fakeGateway) UpdateTaskStatus(ctx context.Context, remoteID string, status model.Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failUpdate != nil {
		return g.failUpdate
	}
	g.statusUpdates[remoteID] = status
	if t, ok := g.active[remoteID]; ok {
		t.Status = status
		g.active[remoteID] = t
	}
	return nil
}

func (g *fakeGateway) SoftDeleteTask(ctx context.Context, remoteID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failSoftDelete != nil {
		return g.failSoftDelete
	}
	g.softDeleted = append(g.softDeleted, remoteID)
	delete(g.active, remoteID)
	return nil
}

func (g *fakeGateway) ListArchivedTasks(ctx context.Context) ([]model.Task, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failList != nil {
		return nil, g.failList
	}
	return append([]model.Task(nil), g.archive...), nil
}

func (g *fakeGateway) CreateArchivedTask(ctx context.Context, f model.TaskFields) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.archiveCalls++
	if g.failArchive != nil {
		return "", g.failArchive
	}
	id := g.nextID()
	g.archive = append(g.archive, model.Task{
		RemoteID: id, Title: f.Title, Category: f.Category,
		Priority: f.Priority, DueDate: f.DueDate, Status: f.Status,
	})
	return id, nil
}

func (g *fakeGateway) ListHabits(ctx context.Context) ([]model.Habit, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failList != nil {
		return nil, g.failList
	}
	return append([]model.Habit(nil), g.habits...), nil
}

func (g *fakeGateway) SetHabitDone(ctx context.Context, habitID string, done bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failHabit[habitID] {
		return errRemote
	}
	g.habitDone[habitID] = done
	return nil
}

func (g *fakeGateway) CreateTimeBlock(ctx context.Context, block model.TimeBlock) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failBlock != nil {
		return "", g.failBlock
	}
	id := g.nextID()
	g.blocks = append(g.blocks, block)
	return id, nil
}

func (g *fakeGateway) set(fn func(g *fakeGateway)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

// onlineFlag is a settable Connectivity.
type onlineFlag struct {
	mu     gosync.Mutex
	online bool
}

func (f *onlineFlag) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *onlineFlag) Set(online bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online = online
}
