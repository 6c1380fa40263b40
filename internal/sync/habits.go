package sync

import (
	"context"
	"fmt"
	"io"
	"log"
	gosync "sync"

	"github.com/nhle/efficio/internal/gateway"
	"github.com/nhle/efficio/internal/model"
)

// HabitState is a habit plus its session-scoped completion flags.
type HabitState struct {
	model.Habit
	// Checked is set by the user during the session.
	Checked bool
	// Locked is set once a checked habit has been submitted; locked
	// habits cannot be toggled again until the next Load.
	Locked bool
}

// HabitTracker keeps per-session habit completion in memory. Nothing it
// holds is written to the local store; every Load resets the flags.
type HabitTracker struct {
	gateway gateway.Gateway
	logger  *log.Logger

	mu      gosync.Mutex
	habits  []model.Habit
	checked map[string]bool
	locked  map[string]bool
}

// NewHabitTracker creates an empty tracker.
func NewHabitTracker(gw gateway.Gateway, logger *log.Logger) *HabitTracker {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &HabitTracker{
		gateway: gw,
		logger:  logger,
		checked: make(map[string]bool),
		locked:  make(map[string]bool),
	}
}

// Load fetches the habit list and resets every checked and locked flag.
func (h *HabitTracker) Load(ctx context.Context) error {
	habits, err := h.gateway.ListHabits(ctx)
	if err != nil {
		return fmt.Errorf("loading habits: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.habits = habits
	h.checked = make(map[string]bool, len(habits))
	h.locked = make(map[string]bool, len(habits))
	return nil
}

// Habits returns the loaded habits with their session flags.
func (h *HabitTracker) Habits() []HabitState {
	h.mu.Lock()
	defer h.mu.Unlock()

	states := make([]HabitState, 0, len(h.habits))
	for _, habit := range h.habits {
		states = append(states, HabitState{
			Habit:   habit,
			Checked: h.checked[habit.ID],
			Locked:  h.locked[habit.ID],
		})
	}
	return states
}

// Toggle flips the checked flag of an unlocked habit. It reports the new
// flag, or false with ErrNotFound for an unknown id.
func (h *HabitTracker) Toggle(id string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.hasHabit(id) {
		return false, fmt.Errorf("habit %s: %w", id, ErrNotFound)
	}
	if h.locked[id] {
		return h.checked[id], nil
	}
	h.checked[id] = !h.checked[id]
	return h.checked[id], nil
}

// Pending reports whether any habit is checked but not yet submitted.
func (h *HabitTracker) Pending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pendingIDs()) > 0
}

// Submit marks every checked, unlocked habit as done remotely. The calls
// run in parallel; habits whose call succeeded are locked. It returns how
// many were submitted and the first failure, if any.
func (h *HabitTracker) Submit(ctx context.Context) (int, error) {
	h.mu.Lock()
	ids := h.pendingIDs()
	h.mu.Unlock()

	if len(ids) == 0 {
		return 0, nil
	}

	errs := make([]error, len(ids))
	var wg gosync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = h.gateway.SetHabitDone(ctx, id, true)
		}(i, id)
	}
	wg.Wait()

	submitted := 0
	var firstErr error

	h.mu.Lock()
	for i, id := range ids {
		if errs[i] != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("submitting habit %s: %w", id, errs[i])
			}
			continue
		}
		h.locked[id] = true
		submitted++
	}
	h.mu.Unlock()

	h.logger.Printf("sync: submitted %d of %d habits", submitted, len(ids))
	return submitted, firstErr
}

// hasHabit reports whether id is a loaded habit. The caller holds mu.
func (h *HabitTracker) hasHabit(id string) bool {
	for _, habit := range h.habits {
		if habit.ID == id {
			return true
		}
	}
	return false
}

// pendingIDs lists checked habits not yet submitted. The caller holds mu.
func (h *HabitTracker) pendingIDs() []string {
	var ids []string
	for _, habit := range h.habits {
		if h.checked[habit.ID] && !h.locked[habit.ID] {
			ids = append(ids, habit.ID)
		}
	}
	return ids
}
