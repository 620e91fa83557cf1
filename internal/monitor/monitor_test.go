package monitor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"unitdeck/internal/monitor"
	"unitdeck/internal/storage"
	"unitdeck/internal/unit"
	"unitdeck/pkg/logx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStatus struct {
	mu     sync.Mutex
	states map[string]string
	calls  int
}

func newFakeStatus() *fakeStatus {
	return &fakeStatus{states: map[string]string{}}
}

func (f *fakeStatus) Status(_ context.Context, name string) (unit.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	st, ok := f.states[name]
	if !ok {
		return unit.Status{}, &unit.Error{Kind: unit.KindNotFound, Op: "systemctl show", Unit: name}
	}
	return unit.Status{Name: name, ActiveState: st, SubState: "running"}, nil
}

func (f *fakeStatus) set(name, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[name] = state
}

func (f *fakeStatus) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type staticUnits []string

func (u staticUnits) Services(context.Context) ([]string, error) {
	return append([]string(nil), u...), nil
}

type fakeRestarter struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeRestarter) Restart(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeRestarter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type captureAudit struct {
	mu      sync.Mutex
	entries []storage.AuditEntry
}

func (c *captureAudit) AppendAudit(_ context.Context, e storage.AuditEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureAudit) Entries() []storage.AuditEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]storage.AuditEntry(nil), c.entries...)
}

func startMonitor(t *testing.T, svc *monitor.Service) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestValidateSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{name: "duration", spec: "30s"},
		{name: "cron five fields", spec: "*/5 * * * *"},
		{name: "cron weekday", spec: "0 3 * * 1-5"},
		{name: "descriptor", spec: "@every 1m"},
		{name: "garbage", spec: "banana", wantErr: true},
		{name: "empty", spec: "", wantErr: true},
		{name: "negative interval", spec: "-10s", wantErr: true},
		{name: "minute out of range", spec: "99 * * * *", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := monitor.ValidateSpec(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := monitor.New(
		monitor.Config{Poll: "not-a-schedule"},
		monitor.Deps{Status: newFakeStatus(), Units: staticUnits{}},
		logx.Nop(),
	)
	require.Error(t, err)
}

func TestEmitsTransition(t *testing.T) {
	fs := newFakeStatus()
	fs.set("nginx.service", "active")

	svc, err := monitor.New(
		monitor.Config{Poll: "50ms"},
		monitor.Deps{Status: fs, Units: staticUnits{"nginx.service"}},
		logx.Nop(),
	)
	require.NoError(t, err)
	startMonitor(t, svc)

	// Wait for the priming pass before flipping the state, so the
	// monitor has an "active" baseline to diff against.
	require.Eventually(t, func() bool { return fs.callCount() >= 1 }, 2*time.Second, 10*time.Millisecond)
	fs.set("nginx.service", "failed")

	var ev monitor.Event
	require.Eventually(t, func() bool {
		select {
		case ev = <-svc.Events():
			return true
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	require.Equal(t, "nginx.service", ev.Unit)
	require.Equal(t, "active", ev.From)
	require.Equal(t, "failed", ev.To)
	require.NotEmpty(t, ev.ID)
	require.False(t, ev.At.IsZero())
}

func TestSteadyStateEmitsNothing(t *testing.T) {
	fs := newFakeStatus()
	fs.set("cron.service", "active")

	svc, err := monitor.New(
		monitor.Config{Poll: "50ms"},
		monitor.Deps{Status: fs, Units: staticUnits{"cron.service"}},
		logx.Nop(),
	)
	require.NoError(t, err)
	startMonitor(t, svc)

	require.Eventually(t, func() bool { return fs.callCount() >= 4 }, 3*time.Second, 10*time.Millisecond)

	select {
	case ev := <-svc.Events():
		t.Fatalf("unexpected event: %+v", ev)
	default:
	}
}

func TestEventsCloseOnStop(t *testing.T) {
	fs := newFakeStatus()
	fs.set("a.service", "active")

	svc, err := monitor.New(
		monitor.Config{Poll: "1h"},
		monitor.Deps{Status: fs, Units: staticUnits{"a.service"}},
		logx.Nop(),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Run(ctx)
	}()

	cancel()
	<-done

	_, open := <-svc.Events()
	require.False(t, open)
}

func TestAutoRestartAfterMinDown(t *testing.T) {
	fs := newFakeStatus()
	fs.set("web.service", "failed")
	rest := &fakeRestarter{}
	audit := &captureAudit{}

	svc, err := monitor.New(
		monitor.Config{
			Poll:        "50ms",
			AutoRestart: true,
			MinDown:     120 * time.Millisecond,
			BackoffBase: 50 * time.Millisecond,
		},
		monitor.Deps{Status: fs, Units: staticUnits{"web.service"}, Restart: rest, Audit: audit},
		logx.Nop(),
	)
	require.NoError(t, err)
	startMonitor(t, svc)

	require.Eventually(t, func() bool { return len(rest.Calls()) >= 1 }, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, "web.service", rest.Calls()[0])

	require.Eventually(t, func() bool { return len(audit.Entries()) >= 1 }, 2*time.Second, 20*time.Millisecond)
	e := audit.Entries()[0]
	require.Equal(t, "monitor", e.Actor)
	require.Equal(t, "restart", e.Action)
	require.Equal(t, "web.service", e.Unit)
	require.True(t, e.OK)
	require.False(t, e.At.IsZero())
}

func TestAutoRestartWaitsOutMinDown(t *testing.T) {
	fs := newFakeStatus()
	fs.set("web.service", "failed")
	rest := &fakeRestarter{}

	svc, err := monitor.New(
		monitor.Config{
			Poll:        "50ms",
			AutoRestart: true,
			MinDown:     10 * time.Second,
		},
		monitor.Deps{Status: fs, Units: staticUnits{"web.service"}, Restart: rest},
		logx.Nop(),
	)
	require.NoError(t, err)
	startMonitor(t, svc)

	require.Eventually(t, func() bool { return fs.callCount() >= 5 }, 3*time.Second, 10*time.Millisecond)
	require.Empty(t, rest.Calls())
}

func TestAutoRestartLeavesHealthyAlone(t *testing.T) {
	fs := newFakeStatus()
	fs.set("web.service", "active")
	rest := &fakeRestarter{}

	svc, err := monitor.New(
		monitor.Config{
			Poll:        "50ms",
			AutoRestart: true,
			MinDown:     time.Millisecond,
		},
		monitor.Deps{Status: fs, Units: staticUnits{"web.service"}, Restart: rest},
		logx.Nop(),
	)
	require.NoError(t, err)
	startMonitor(t, svc)

	require.Eventually(t, func() bool { return fs.callCount() >= 4 }, 3*time.Second, 10*time.Millisecond)
	require.Empty(t, rest.Calls())
}

func TestAutoRestartBacksOffAfterFailure(t *testing.T) {
	fs := newFakeStatus()
	fs.set("web.service", "failed")
	rest := &fakeRestarter{err: errors.New("job for web.service failed")}
	audit := &captureAudit{}

	svc, err := monitor.New(
		monitor.Config{
			Poll:        "50ms",
			AutoRestart: true,
			MinDown:     60 * time.Millisecond,
			BackoffBase: 10 * time.Second,
		},
		monitor.Deps{Status: fs, Units: staticUnits{"web.service"}, Restart: rest, Audit: audit},
		logx.Nop(),
	)
	require.NoError(t, err)
	startMonitor(t, svc)

	require.Eventually(t, func() bool { return len(rest.Calls()) >= 1 }, 5*time.Second, 20*time.Millisecond)

	// The failed attempt schedules the next try seconds away, so no
	// second restart lands in this window.
	time.Sleep(300 * time.Millisecond)
	require.Len(t, rest.Calls(), 1)

	require.Eventually(t, func() bool { return len(audit.Entries()) >= 1 }, 2*time.Second, 20*time.Millisecond)
	e := audit.Entries()[0]
	require.False(t, e.OK)
	require.Contains(t, e.Error, "failed")
}

func TestApplyReschedules(t *testing.T) {
	fs := newFakeStatus()
	fs.set("nginx.service", "active")

	svc, err := monitor.New(
		monitor.Config{Poll: "1h"},
		monitor.Deps{Status: fs, Units: staticUnits{"nginx.service"}},
		logx.Nop(),
	)
	require.NoError(t, err)
	startMonitor(t, svc)

	require.Eventually(t, func() bool { return fs.callCount() >= 1 }, 2*time.Second, 10*time.Millisecond)
	fs.set("nginx.service", "failed")

	require.Error(t, svc.Apply(monitor.Config{Poll: "banana"}))
	require.NoError(t, svc.Apply(monitor.Config{Poll: "50ms"}))

	require.Eventually(t, func() bool {
		select {
		case <-svc.Events():
			return true
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}
