package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// PollState represents the current state of the background sync loop.
type PollState int

const (
	PollIdle PollState = iota
	PollRunning
	PollError
)

// PollStatus holds the state of the background sync loop.
type PollStatus struct {
	State    PollState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a background sync pass completes.
type SyncResultMsg struct {
	Sweep   SweepResult
	Refresh RefreshResult
	Error   error
}

// passTimeout is the maximum time allowed for a single sync pass.
const passTimeout = 60 * time.Second

// Poller runs the engine's reconnect sweep and refresh in the background,
// periodically and on demand, and reports each pass to the Bubble Tea
// runtime.
type Poller struct {
	engine    *Engine
	interval  time.Duration
	status    PollStatus
	resultCh  chan SyncResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// NewPoller creates a Poller for e. A non-positive interval defaults to
// five minutes.
func NewPoller(e *Engine, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Poller{
		engine:    e,
		interval:  interval,
		resultCh:  make(chan SyncResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start returns a tea.Cmd that starts the polling goroutine and waits for
// the first result.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForResult()
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Trigger requests an immediate pass. Requests made while one is already
// queued are dropped.
func (p *Poller) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the current state of the loop.
func (p *Poller) Status() PollStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// WaitForNextResult returns a tea.Cmd that waits for the next pass result.
// Call it after handling a SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.pass()
		case <-p.triggerCh:
			p.pass()
		}
	}
}

// pass runs one reconnect sweep followed by a refresh.
func (p *Poller) pass() {
	p.setStatus(PollRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()

	sweep, err := p.engine.Reconnect(ctx)
	if err != nil {
		p.setStatus(PollError, err)
		p.sendResult(SyncResultMsg{Sweep: sweep, Error: err})
		return
	}
	if sweep.Offline {
		p.setStatus(PollIdle, ErrOffline)
		p.sendResult(SyncResultMsg{Sweep: sweep, Refresh: RefreshResult{Offline: true}})
		return
	}

	refresh, err := p.engine.Refresh(ctx, false)
	if err != nil {
		p.setStatus(PollError, err)
		p.sendResult(SyncResultMsg{Sweep: sweep, Refresh: refresh, Error: err})
		return
	}

	p.setStatus(PollIdle, nil)
	p.sendResult(SyncResultMsg{Sweep: sweep, Refresh: refresh})
}

func (p *Poller) setStatus(state PollState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == PollIdle && err == nil {
		p.status.LastSync = p.engine.now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}
