// Package connectivity tracks whether the remote gateway is reachable and
// notifies listeners when it comes back.
package connectivity

import (
	"context"
	"io"
	"log"
	gosync "sync"
	"sync/atomic"
	"time"
)

// Prober checks reachability of the remote. gateway.Gateway satisfies it.
type Prober interface {
	Ping(ctx context.Context) error
}

// Handler runs when connectivity transitions from offline to online.
type Handler func(ctx context.Context)

// probeTimeout bounds a single reachability probe.
const probeTimeout = 5 * time.Second

// Monitor holds the current online flag. The zero value is not usable;
// create one with New.
type Monitor struct {
	online   atomic.Bool
	mu       gosync.Mutex
	handlers []Handler
	prober   Prober
	interval time.Duration
	logger   *log.Logger
}

// New creates a Monitor with the given initial state. prober may be nil if
// Run is never called.
func New(initial bool, prober Prober, interval time.Duration, logger *log.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	m := &Monitor{
		prober:   prober,
		interval: interval,
		logger:   logger,
	}
	m.online.Store(initial)
	return m
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// OnOnline registers h to run on every offline to online transition.
func (m *Monitor) OnOnline(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Set records the connectivity state. On an offline to online transition
// the registered handlers run synchronously before Set returns.
func (m *Monitor) Set(ctx context.Context, online bool) {
	was := m.online.Swap(online)
	if was == online {
		return
	}
	if !online {
		m.logger.Printf("connectivity: offline")
		return
	}

	m.logger.Printf("connectivity: online")
	m.mu.Lock()
	handlers := make([]Handler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for _, h := range handlers {
		h(ctx)
	}
}

// Probe checks the remote once and records the outcome.
func (m *Monitor) Probe(ctx context.Context) bool {
	if m.prober == nil {
		return m.Online()
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := m.prober.Ping(probeCtx)
	cancel()
	if err != nil && ctx.Err() == nil {
		m.logger.Printf("connectivity: probe failed: %v", err)
	}
	m.Set(ctx, err == nil)
	return err == nil
}

// Run probes the remote immediately and then on every interval until ctx
// is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
