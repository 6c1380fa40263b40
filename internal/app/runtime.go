package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nhle/efficio/internal/connectivity"
	"github.com/nhle/efficio/internal/gateway"
	"github.com/nhle/efficio/internal/logging"
	"github.com/nhle/efficio/internal/model"
	"github.com/nhle/efficio/internal/schedule"
	"github.com/nhle/efficio/internal/store"
	appsync "github.com/nhle/efficio/internal/sync"
)

// noticeBuffer bounds undelivered notifications; older ones are still in
// the store.
const noticeBuffer = 32

// habitSubmitTimeout bounds the scheduled habit submission.
const habitSubmitTimeout = 30 * time.Second

// Runtime holds every long-lived component, wired from one AppConfig.
type Runtime struct {
	Config    *model.AppConfig
	Logger    *log.Logger
	Store     *store.SQLiteStore
	Gateway   *gateway.Client
	Monitor   *connectivity.Monitor
	Engine    *appsync.Engine
	Poller    *appsync.Poller
	Habits    *appsync.HabitTracker
	Planner   *appsync.Planner
	Scheduler *schedule.Scheduler

	logFile *logging.Logger
	notices chan model.Notification
	started bool
}

// Open builds a Runtime. Nothing talks to the network until Connect.
func Open(cfg *model.AppConfig, token string) (*Runtime, error) {
	logFile, err := logging.New(cfg.Log, "[efficio] ")
	if err != nil {
		return nil, err
	}
	logger := logFile.Logger

	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening store %s: %w", cfg.Store.Path, err)
	}

	rt := &Runtime{
		Config:  cfg,
		Logger:  logger,
		Store:   s,
		logFile: logFile,
		notices: make(chan model.Notification, noticeBuffer),
	}

	rt.Gateway = gateway.NewClient(cfg.Gateway.BaseURL, token, seconds(cfg.Gateway.TimeoutSec))
	rt.Monitor = connectivity.New(false, rt.Gateway, seconds(cfg.Gateway.ProbeIntervalSec), logger)
	rt.Engine = appsync.New(s, rt.Gateway, rt.Monitor, appsync.Options{
		MaxAttempts:      cfg.Sync.MaxAttempts,
		BaseBackoff:      seconds(cfg.Sync.BaseBackoffSec),
		MaxBackoff:       seconds(cfg.Sync.MaxBackoffSec),
		ArchiveAfterDays: cfg.Archive.AfterDays,
		Logger:           logger,
		Notify:           rt.deliver,
	})
	rt.Poller = appsync.NewPoller(rt.Engine, 0)
	rt.Habits = appsync.NewHabitTracker(rt.Gateway, logger)
	rt.Planner = appsync.NewPlanner(rt.Engine)
	rt.Scheduler = schedule.New(time.Local)

	return rt, nil
}

// Connect probes the gateway once and runs the engine's start-up sequence.
func (r *Runtime) Connect(ctx context.Context) (appsync.StartResult, error) {
	online := r.Monitor.Probe(ctx)
	r.Logger.Printf("start: gateway online=%v", online)
	return r.Engine.Start(ctx)
}

// RunBackground keeps connectivity fresh, re-syncs on every reconnect and
// schedules the daily habit submission. It returns once the goroutines
// are started; they stop when ctx is cancelled.
func (r *Runtime) RunBackground(ctx context.Context) error {
	if r.started {
		return nil
	}

	if _, err := r.Scheduler.ScheduleDaily(r.Config.Habits.SubmitAt, r.submitHabits); err != nil {
		return fmt.Errorf("scheduling habit submission: %w", err)
	}

	r.Monitor.OnOnline(func(ctx context.Context) {
		res, err := r.Engine.Reconnect(ctx)
		if err != nil {
			r.Logger.Printf("reconnect: %v", err)
			return
		}
		r.Logger.Printf("reconnect: synced %d of %d", res.Synced, res.Attempted)
	})
	go r.Monitor.Run(ctx)
	r.Scheduler.Start()
	r.started = true
	return nil
}

// Notices delivers every absorbed sync failure as it happens.
func (r *Runtime) Notices() <-chan model.Notification {
	return r.notices
}

// Close stops background work and releases the store and log file.
func (r *Runtime) Close() error {
	if r.started {
		r.Scheduler.Stop()
	}
	r.Poller.Stop()
	err := r.Store.Close()
	if cerr := r.logFile.Close(); err == nil {
		err = cerr
	}
	return err
}

// deliver forwards a notification without blocking the engine.
func (r *Runtime) deliver(n model.Notification) {
	select {
	case r.notices <- n:
	default:
	}
}

// submitHabits sends the day's checked habits, then starts a new session.
func (r *Runtime) submitHabits() {
	ctx, cancel := context.WithTimeout(context.Background(), habitSubmitTimeout)
	defer cancel()

	if r.Habits.Pending() {
		n, err := r.Habits.Submit(ctx)
		if err != nil {
			r.Logger.Printf("habits: submitted %d, error: %v", n, err)
		} else {
			r.Logger.Printf("habits: submitted %d", n)
		}
	}
	if err := r.Habits.Load(ctx); err != nil {
		r.Logger.Printf("habits: reload: %v", err)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
