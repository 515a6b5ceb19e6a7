package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/darkwatch/internal/model"
	"github.com/nao1215/darkwatch/internal/scan"
	"github.com/nao1215/darkwatch/internal/store"
)

type fakeScanner struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (f *fakeScanner) Scan(_ context.Context, url string) (*scan.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[url]++
	if f.err != nil {
		return nil, f.err
	}
	return &scan.Result{Document: &model.ScanDocument{URL: url, ThreatScore: 10}}, nil
}

func (f *fakeScanner) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type countingObserver struct {
	runs           atomic.Int32
	active, paused atomic.Int32
}

func (o *countingObserver) MonitorRan(string, time.Duration, error) { o.runs.Add(1) }

func (o *countingObserver) MonitorsChanged(active, paused int) {
	o.active.Store(int32(active))
	o.paused.Store(int32(paused))
}

func newTestScheduler(t *testing.T, scanner Scanner, opts ...Option) (*Scheduler, *store.SQLite) {
	t.Helper()
	st, err := store.OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	s := New(scanner, st, opts...)
	t.Cleanup(s.Stop)
	return s, st
}

func TestCreateRunsImmediately(t *testing.T) {
	t.Parallel()

	scanner := &fakeScanner{}
	obs := &countingObserver{}
	s, st := newTestScheduler(t, scanner, WithObserver(obs))
	ctx := context.Background()

	m, err := s.Create(ctx, "http://watch.example/", 30)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if m.ID != model.MonitorID("http://watch.example/") || m.Status != model.MonitorActive || m.Interval != 30 {
		t.Errorf("monitor = %+v", m)
	}
	if scanner.count("http://watch.example/") != 1 {
		t.Errorf("scans = %d, want 1", scanner.count("http://watch.example/"))
	}
	if m.ScanCount != 1 || m.LastScan == nil {
		t.Errorf("ScanCount = %d, LastScan = %v", m.ScanCount, m.LastScan)
	}

	stored, err := st.GetMonitor(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMonitor() error = %v", err)
	}
	if stored.ScanCount != 1 || stored.Status != model.MonitorActive {
		t.Errorf("stored = %+v", stored)
	}
	if obs.runs.Load() != 1 || obs.active.Load() != 1 {
		t.Errorf("observer runs = %d, active = %d", obs.runs.Load(), obs.active.Load())
	}
}

func TestCreateFailedFirstScanKeepsMonitor(t *testing.T) {
	t.Parallel()

	scanner := &fakeScanner{err: model.ErrProxyUnavailable}
	s, _ := newTestScheduler(t, scanner)

	m, err := s.Create(context.Background(), "http://flaky.example/", 5)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if m.Status != model.MonitorActive || m.ScanCount != 0 {
		t.Errorf("monitor = %+v", m)
	}
	if active, _ := s.Counts(); active != 1 {
		t.Errorf("active = %d, want 1", active)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t, &fakeScanner{})
	ctx := context.Background()

	if _, err := s.Create(ctx, "watch.example", 5); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Create(no scheme) error = %v, want ErrInvalidInput", err)
	}
	if _, err := s.Create(ctx, "http://watch.example/", 0); !errors.Is(err, model.ErrInvalidInterval) {
		t.Errorf("Create(interval 0) error = %v, want ErrInvalidInterval", err)
	}
	if _, err := s.Create(ctx, "http://watch.example/", 5); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err := s.Create(ctx, "http://watch.example/", 10)
	if !errors.Is(err, model.ErrMonitorExists) || !errors.Is(err, model.ErrCapacity) {
		t.Errorf("duplicate Create() error = %v, want ErrMonitorExists", err)
	}
}

func TestCreateLimit(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t, &fakeScanner{})
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		limited   atomic.Int32
	)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, fmt.Sprintf("http://m%d.example/", i), 5)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, model.ErrMonitorLimit):
				limited.Add(1)
			default:
				t.Errorf("Create() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() != DefaultMaxMonitors || limited.Load() != 3 {
		t.Errorf("succeeded = %d, limited = %d", succeeded.Load(), limited.Load())
	}
	list, err := s.List(ctx)
	if err != nil || len(list) != DefaultMaxMonitors {
		t.Errorf("List() = %d monitors, %v", len(list), err)
	}
}

func TestPauseResumeRemove(t *testing.T) {
	t.Parallel()

	s, st := newTestScheduler(t, &fakeScanner{})
	ctx := context.Background()

	m, err := s.Create(ctx, "http://cycle.example/", 5)
	if err != nil {
		t.Fatal(err)
	}

	paused, err := s.Pause(ctx, m.ID)
	if err != nil || paused.Status != model.MonitorPaused {
		t.Fatalf("Pause() = %+v, %v", paused, err)
	}
	if _, err := s.Pause(ctx, m.ID); !errors.Is(err, ErrAlreadyInState) {
		t.Errorf("second Pause() error = %v", err)
	}
	if len(s.cron.Entries()) != 0 {
		t.Errorf("paused monitor still has %d cron entries", len(s.cron.Entries()))
	}
	stored, _ := st.GetMonitor(ctx, m.ID)
	if stored.Status != model.MonitorPaused {
		t.Errorf("stored status = %q", stored.Status)
	}

	resumed, err := s.Resume(ctx, m.ID)
	if err != nil || resumed.Status != model.MonitorActive {
		t.Fatalf("Resume() = %+v, %v", resumed, err)
	}
	if len(s.cron.Entries()) != 1 {
		t.Errorf("cron entries = %d, want 1", len(s.cron.Entries()))
	}

	removed, err := s.Remove(ctx, m.ID)
	if err != nil || removed.Status != model.MonitorInactive {
		t.Fatalf("Remove() = %+v, %v", removed, err)
	}
	if _, err := s.Remove(ctx, m.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
	stored, err = s.Get(ctx, m.ID)
	if err != nil || stored.Status != model.MonitorInactive {
		t.Errorf("Get() after remove = %+v, %v", stored, err)
	}
	if list, _ := s.List(ctx); len(list) != 0 {
		t.Errorf("List() = %d monitors after remove", len(list))
	}

	// Re-creating keeps the cumulative scan count.
	again, err := s.Create(ctx, "http://cycle.example/", 5)
	if err != nil {
		t.Fatalf("re-Create() error = %v", err)
	}
	if again.ScanCount != 2 {
		t.Errorf("ScanCount = %d, want 2", again.ScanCount)
	}
}

func TestRemoveAll(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t, &fakeScanner{})
	ctx := context.Background()
	for i := range 3 {
		if _, err := s.Create(ctx, fmt.Sprintf("http://all%d.example/", i), 5); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.RemoveAll(ctx)
	if err != nil || n != 3 {
		t.Fatalf("RemoveAll() = %d, %v", n, err)
	}
	if active, paused := s.Counts(); active+paused != 0 {
		t.Errorf("registered = %d after RemoveAll", active+paused)
	}
	inactive, _ := s.List(ctx, model.MonitorInactive)
	if len(inactive) != 3 {
		t.Errorf("inactive = %d, want 3", len(inactive))
	}
}

func TestMonitorLocksReleased(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t, &fakeScanner{})
	ctx := context.Background()
	for i := range 4 {
		m, err := s.Create(ctx, fmt.Sprintf("http://lock%d.example/", i), 5)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.Pause(ctx, m.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Remove(ctx, m.ID); err != nil {
			t.Fatal(err)
		}
	}
	if n := s.locks.Len(); n != 0 {
		t.Errorf("%d monitor locks still held after all operations returned", n)
	}
}

func TestLoadRestoresRegistry(t *testing.T) {
	t.Parallel()

	st, err := store.OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()

	first := New(&fakeScanner{}, st)
	a, err := first.Create(ctx, "http://a.example/", 5)
	if err != nil {
		t.Fatal(err)
	}
	b, err := first.Create(ctx, "http://b.example/", 7)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.Pause(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	first.Stop()

	scanner := &fakeScanner{}
	second := New(scanner, st)
	if err := second.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(second.Stop)

	active, paused := second.Counts()
	if active != 1 || paused != 1 {
		t.Errorf("active = %d, paused = %d", active, paused)
	}
	if len(second.cron.Entries()) != 1 {
		t.Errorf("cron entries = %d, want 1", len(second.cron.Entries()))
	}
	if _, err := second.Create(ctx, a.URL, 5); !errors.Is(err, model.ErrMonitorExists) {
		t.Errorf("Create() of restored monitor error = %v", err)
	}
	if scanner.count(a.URL) != 0 {
		t.Error("restoring must not trigger a scan")
	}
}

func TestTickRecordsRun(t *testing.T) {
	t.Parallel()

	scanner := &fakeScanner{}
	s, st := newTestScheduler(t, scanner)
	ctx := context.Background()

	m, err := s.Create(ctx, "http://tick.example/", 5)
	if err != nil {
		t.Fatal(err)
	}
	s.tick(m.ID)
	s.tick(m.ID)

	if got := scanner.count(m.URL); got != 3 {
		t.Errorf("scans = %d, want 3", got)
	}
	stored, _ := st.GetMonitor(ctx, m.ID)
	if stored.ScanCount != 3 {
		t.Errorf("ScanCount = %d, want 3", stored.ScanCount)
	}

	if _, err := s.Pause(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	s.tick(m.ID)
	if got := scanner.count(m.URL); got != 3 {
		t.Errorf("paused monitor was scanned, scans = %d", got)
	}
}

func TestResumeRespectsLimit(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t, &fakeScanner{}, WithMaxMonitors(2))
	ctx := context.Background()

	a, err := s.Create(ctx, "http://r1.example/", 5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Pause(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, "http://r2.example/", 5); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, "http://r3.example/", 5); !errors.Is(err, model.ErrMonitorLimit) {
		t.Errorf("Create() beyond limit error = %v", err)
	}
	if _, err := s.Resume(ctx, a.ID); err != nil {
		t.Errorf("Resume() error = %v", err)
	}
}

func TestNextRun(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t, &fakeScanner{})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m, err := s.Create(ctx, "http://next.example/", 10)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	next, ok := s.NextRun(m.ID)
	if !ok {
		t.Fatal("NextRun() reported no schedule for an active monitor")
	}
	if until := time.Until(next); until <= 0 || until > 10*time.Minute {
		t.Errorf("next run in %v, want within the interval", until)
	}

	if _, err := s.Pause(ctx, m.ID); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if _, ok := s.NextRun(m.ID); ok {
		t.Error("NextRun() reported a schedule for a paused monitor")
	}
	if _, ok := s.NextRun("unknown"); ok {
		t.Error("NextRun() reported a schedule for an unknown monitor")
	}
}
