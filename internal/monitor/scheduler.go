package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nao1215/darkwatch/internal/keylock"
	dwlog "github.com/nao1215/darkwatch/internal/log"
	"github.com/nao1215/darkwatch/internal/model"
	"github.com/nao1215/darkwatch/internal/scan"
)

const (
	// DefaultMaxMonitors is the number of monitors that may be registered.
	DefaultMaxMonitors = 5
	// MinIntervalMinutes is the shortest accepted interval.
	MinIntervalMinutes = 1
)

// Scanner runs one scan. *scan.Orchestrator satisfies it.
type Scanner interface {
	Scan(ctx context.Context, url string) (*scan.Result, error)
}

// Storage persists monitors. store.Store satisfies it.
type Storage interface {
	SaveMonitor(ctx context.Context, m *model.Monitor) error
	GetMonitor(ctx context.Context, id string) (*model.Monitor, error)
	ListMonitors(ctx context.Context, statuses ...model.MonitorStatus) ([]*model.Monitor, error)
	RecordMonitorScan(ctx context.Context, id string, at time.Time) error
}

// Observer is told about monitor runs and registry changes.
type Observer interface {
	MonitorRan(id string, elapsed time.Duration, err error)
	MonitorsChanged(active, paused int)
}

type entry struct {
	monitor   *model.Monitor
	entryID   cron.EntryID
	scheduled bool
}

// Scheduler runs registered monitors on their intervals.
type Scheduler struct {
	scanner     Scanner
	store       Storage
	cron        *cron.Cron
	logger      *slog.Logger
	observer    Observer
	now         func() time.Time
	maxMonitors int

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry

	locks keylock.Map
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. cron's own logging goes through it too.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// WithMaxMonitors overrides DefaultMaxMonitors.
func WithMaxMonitors(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxMonitors = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a Scheduler. Call Start to restore persisted monitors and
// begin firing, or Load to restore them without firing.
func New(scanner Scanner, store Storage, opts ...Option) *Scheduler {
	s := &Scheduler{
		scanner:     scanner,
		store:       store,
		now:         func() time.Time { return time.Now().UTC() },
		maxMonitors: DefaultMaxMonitors,
		entries:     make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	cl := dwlog.CronLogger(s.logger)
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Load rebuilds the registry from the store. Active monitors get a cron
// entry at their stored interval; paused ones are registered without one.
func (s *Scheduler) Load(ctx context.Context) error {
	monitors, err := s.store.ListMonitors(ctx, model.MonitorActive, model.MonitorPaused)
	if err != nil {
		return fmt.Errorf("failed to load monitors: %w", err)
	}

	s.mu.Lock()
	for _, m := range monitors {
		if _, ok := s.entries[m.ID]; ok {
			continue
		}
		e := &entry{monitor: m}
		if m.Status == model.MonitorActive {
			s.schedule(e)
		}
		s.entries[m.ID] = e
	}
	n := len(s.entries)
	s.mu.Unlock()

	if n > s.maxMonitors {
		s.logger.Warn("more monitors stored than allowed", "registered", n, "max", s.maxMonitors)
	}
	s.logger.Info("monitors restored", "count", n)
	s.notify()
	return nil
}

// Start restores persisted monitors and starts firing ticks.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("monitor scheduler started")
	return nil
}

// Stop stops firing ticks and waits for running scans to finish.
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.cancel()
	s.logger.Info("monitor scheduler stopped")
}

// Create registers a monitor for rawURL firing every minutes minutes and
// runs its first scan before returning. A failed first scan is logged and
// does not undo the registration.
func (s *Scheduler) Create(ctx context.Context, rawURL string, minutes int) (*model.Monitor, error) {
	url, err := model.SanitizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	if minutes < MinIntervalMinutes {
		return nil, model.ErrInvalidInterval
	}
	id := model.MonitorID(url)

	m, err := s.register(ctx, id, url, minutes)
	if err != nil {
		return nil, err
	}
	s.logger.Info("monitor created", "monitor_id", id, "url", url, "interval_minutes", minutes)
	s.notify()

	s.run(ctx, id, url)
	if current, ok := s.cached(id); ok {
		m = current
	}
	return m, nil
}

func (s *Scheduler) register(ctx context.Context, id, url string, minutes int) (*model.Monitor, error) {
	unlock := s.locks.Lock(id)
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; ok {
		return nil, model.ErrMonitorExists
	}
	if len(s.entries) >= s.maxMonitors {
		return nil, model.ErrMonitorLimit
	}

	now := s.now()
	m := &model.Monitor{
		ID:        id,
		URL:       url,
		Interval:  minutes,
		Status:    model.MonitorActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// A re-created monitor keeps its scan counters.
	prev, err := s.store.GetMonitor(ctx, id)
	switch {
	case err == nil:
		m.ScanCount = prev.ScanCount
		m.LastScan = prev.LastScan
	case !errors.Is(err, model.ErrNotFound):
		return nil, err
	}
	if err := s.store.SaveMonitor(ctx, m); err != nil {
		return nil, err
	}

	e := &entry{monitor: m}
	s.schedule(e)
	s.entries[id] = e
	return clone(m), nil
}

// Get returns the stored monitor.
func (s *Scheduler) Get(ctx context.Context, id string) (*model.Monitor, error) {
	return s.store.GetMonitor(ctx, id)
}

// List returns stored monitors with the given statuses, or every active
// and paused monitor when none are given.
func (s *Scheduler) List(ctx context.Context, statuses ...model.MonitorStatus) ([]*model.Monitor, error) {
	if len(statuses) == 0 {
		statuses = []model.MonitorStatus{model.MonitorActive, model.MonitorPaused}
	}
	return s.store.ListMonitors(ctx, statuses...)
}

// Pause stops the monitor's ticks and keeps it registered.
func (s *Scheduler) Pause(ctx context.Context, id string) (*model.Monitor, error) {
	return s.transition(ctx, id, func(e *entry) (model.MonitorStatus, error) {
		if e.monitor.Status == model.MonitorPaused {
			return "", ErrAlreadyInState
		}
		return model.MonitorPaused, nil
	})
}

// Resume restarts the ticks of a paused monitor.
func (s *Scheduler) Resume(ctx context.Context, id string) (*model.Monitor, error) {
	return s.transition(ctx, id, func(e *entry) (model.MonitorStatus, error) {
		if e.monitor.Status == model.MonitorActive {
			return "", ErrAlreadyInState
		}
		if s.activeLocked() >= s.maxMonitors {
			return "", model.ErrMonitorLimit
		}
		return model.MonitorActive, nil
	})
}

// Remove deregisters the monitor and marks it inactive. The record is kept.
func (s *Scheduler) Remove(ctx context.Context, id string) (*model.Monitor, error) {
	return s.transition(ctx, id, func(*entry) (model.MonitorStatus, error) {
		return model.MonitorInactive, nil
	})
}

// RemoveAll removes every registered monitor and returns how many were removed.
func (s *Scheduler) RemoveAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	removed := 0
	for _, id := range ids {
		_, err := s.Remove(ctx, id)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, ErrMonitorNotRegistered):
		default:
			return removed, err
		}
	}
	return removed, nil
}

// transition persists the status chosen by decide and applies it to the
// registry and cron. decide runs with the registry lock held.
func (s *Scheduler) transition(ctx context.Context, id string, decide func(*entry) (model.MonitorStatus, error)) (*model.Monitor, error) {
	unlock := s.locks.Lock(id)
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMonitorNotRegistered, id)
	}
	status, err := decide(e)
	if err != nil {
		return nil, err
	}

	updated := clone(e.monitor)
	updated.Status = status
	updated.UpdatedAt = s.now()
	if err := s.store.SaveMonitor(ctx, updated); err != nil {
		return nil, err
	}

	switch status {
	case model.MonitorActive:
		e.monitor = updated
		s.schedule(e)
	case model.MonitorPaused:
		s.unschedule(e)
		e.monitor = updated
	case model.MonitorInactive:
		s.unschedule(e)
		delete(s.entries, id)
	}
	s.logger.Info("monitor status changed", "monitor_id", id, "status", status)
	s.notifyLocked()
	return clone(updated), nil
}

// schedule adds the cron entry for e. The caller holds s.mu.
func (s *Scheduler) schedule(e *entry) {
	if e.scheduled {
		return
	}
	id := e.monitor.ID
	e.entryID = s.cron.Schedule(cron.Every(e.monitor.IntervalDuration()), cron.FuncJob(func() {
		s.tick(id)
	}))
	e.scheduled = true
}

// unschedule removes the cron entry of e. The caller holds s.mu.
func (s *Scheduler) unschedule(e *entry) {
	if !e.scheduled {
		return
	}
	s.cron.Remove(e.entryID)
	e.scheduled = false
}

// tick is the cron job of one monitor.
func (s *Scheduler) tick(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.monitor.Status != model.MonitorActive {
		s.mu.Unlock()
		return
	}
	url := e.monitor.URL
	s.mu.Unlock()

	s.logger.Debug("monitor tick", "monitor_id", id, "url", url)
	s.run(s.ctx, id, url)
}

// run scans url and records the run on success.
func (s *Scheduler) run(ctx context.Context, id, url string) {
	start := time.Now()
	res, err := s.scanner.Scan(ctx, url)
	if s.observer != nil {
		s.observer.MonitorRan(id, time.Since(start), err)
	}
	if err != nil {
		s.logger.Error("monitor scan failed", "monitor_id", id, "url", url, "error", err)
		return
	}

	unlock := s.locks.Lock(id)
	defer unlock()
	at := s.now()
	if err := s.store.RecordMonitorScan(context.WithoutCancel(ctx), id, at); err != nil {
		s.logger.Error("failed to record monitor scan", "monitor_id", id, "error", err)
		return
	}
	s.mu.Lock()
	if e, ok := s.entries[id]; ok {
		e.monitor.ScanCount++
		e.monitor.LastScan = &at
	}
	s.mu.Unlock()

	s.logger.Info("monitor scan completed",
		"monitor_id", id,
		"url", url,
		"threat_score", res.Document.ThreatScore,
		"score_delta", res.ScoreDelta,
		"alerts", len(res.Alerts),
	)
}

func (s *Scheduler) cached(id string) (*model.Monitor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return clone(e.monitor), true
}

// NextRun returns the next tick time of an active monitor. It reports
// false for paused or unknown monitors and before Start.
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || !e.scheduled {
		s.mu.Unlock()
		return time.Time{}, false
	}
	entryID := e.entryID
	s.mu.Unlock()

	next := s.cron.Entry(entryID).Next
	return next, !next.IsZero()
}

// Counts returns the number of active and paused monitors.
func (s *Scheduler) Counts() (active, paused int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countsLocked()
}

func (s *Scheduler) countsLocked() (active, paused int) {
	for _, e := range s.entries {
		if e.monitor.Status == model.MonitorActive {
			active++
		} else {
			paused++
		}
	}
	return active, paused
}

func (s *Scheduler) activeLocked() int {
	active, _ := s.countsLocked()
	return active
}

func (s *Scheduler) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyLocked()
}

func (s *Scheduler) notifyLocked() {
	if s.observer == nil {
		return
	}
	active, paused := s.countsLocked()
	s.observer.MonitorsChanged(active, paused)
}

func clone(m *model.Monitor) *model.Monitor {
	c := *m
	if m.LastScan != nil {
		t := *m.LastScan
		c.LastScan = &t
	}
	return &c
}
