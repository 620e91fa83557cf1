// Package monitor polls watched services and turns active-state
// transitions into events.
//
// The poll loop reads the watched set fresh on every tick, so
// watch-list edits and config reloads take effect without a restart.
// An optional auto-restart rule recovers services that stay failed
// past a minimum downtime, with exponential backoff between attempts.
package monitor

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"unitdeck/internal/metrics"
	"unitdeck/internal/storage"
	"unitdeck/internal/unit"
	"unitdeck/pkg/logx"
)

// Event is one observed active-state transition.
type Event struct {
	Unit string    `json:"unit"`
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
	ID   string    `json:"id"`
}

// StatusClient resolves one unit's current state.
type StatusClient interface {
	Status(ctx context.Context, name string) (unit.Status, error)
}

// Watchlist names the services to poll.
type Watchlist interface {
	Services(ctx context.Context) ([]string, error)
}

// Restarter recovers a failed unit.
type Restarter interface {
	Restart(ctx context.Context, name string) error
}

// Auditor records recovery attempts.
type Auditor interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

// Config controls the poll loop. Zero durations take defaults.
type Config struct {
	// Poll is the tick schedule: a Go duration ("30s") or a cron
	// expression ("*/1 * * * *", "@every 1m"). Default "30s".
	Poll string

	// AutoRestart restarts a watched service that has stayed failed
	// for at least MinDown. Needs a Restarter to do anything.
	AutoRestart    bool
	MinDown        time.Duration // default 2m
	RestartTimeout time.Duration // default 15s
	BackoffBase    time.Duration // default 5s
	BackoffMax     time.Duration // default 5m
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Poll) == "" {
		cfg.Poll = "30s"
	}
	if cfg.MinDown <= 0 {
		cfg.MinDown = 2 * time.Minute
	}
	if cfg.RestartTimeout <= 0 {
		cfg.RestartTimeout = 15 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 5 * time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 5 * time.Minute
	}
}

// Deps wires the monitor's collaborators. Restart and Audit may be nil.
type Deps struct {
	Status  StatusClient
	Units   Watchlist
	Restart Restarter
	Audit   Auditor
}

const eventBuffer = 100

// recoverState tracks one failed unit between restart attempts.
type recoverState struct {
	downSince  time.Time
	failStreak int
	nextTry    time.Time
}

// Service is the poll loop. Construct with New, drive with Run.
type Service struct {
	status StatusClient
	units  Watchlist
	rest   Restarter
	audit  Auditor
	log    logx.Logger

	mu   sync.Mutex
	cfg  Config
	spec pollSpec
	prev map[string]string
	down map[string]*recoverState
	rng  *rand.Rand

	events chan Event
	reload chan struct{}
	now    func() time.Time
}

func New(cfg Config, deps Deps, log logx.Logger) (*Service, error) {
	applyDefaults(&cfg)
	spec, err := parsePollSpec(cfg.Poll)
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		status: deps.Status,
		units:  deps.Units,
		rest:   deps.Restart,
		audit:  deps.Audit,
		log:    log,
		cfg:    cfg,
		spec:   spec,
		prev:   map[string]string{},
		down:   map[string]*recoverState{},
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		events: make(chan Event, eventBuffer),
		reload: make(chan struct{}, 1),
		now:    time.Now,
	}, nil
}

// Apply swaps the poll schedule and restart rule at runtime and wakes
// the loop so a shorter schedule doesn't wait out the old one.
func (s *Service) Apply(cfg Config) error {
	applyDefaults(&cfg)
	spec, err := parsePollSpec(cfg.Poll)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.spec = spec
	s.mu.Unlock()

	select {
	case s.reload <- struct{}{}:
	default:
	}
	return nil
}

// Events delivers observed transitions. When no reader keeps up the
// oldest event is dropped. The channel closes when Run returns.
func (s *Service) Events() <-chan Event { return s.events }

// Run polls until ctx is cancelled. Call it once.
func (s *Service) Run(ctx context.Context) error {
	defer close(s.events)

	// Prime previous states so the first tick doesn't fire an event
	// for every already-running unit.
	s.tick(ctx, true)

	for {
		s.mu.Lock()
		spec := s.spec
		s.mu.Unlock()

		wait := spec.next(s.now()).Sub(s.now())
		if wait < 50*time.Millisecond {
			wait = 50 * time.Millisecond
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-s.reload:
			t.Stop()
			continue
		case <-t.C:
		}
		s.tick(ctx, false)
	}
}

func (s *Service) tick(ctx context.Context, prime bool) {
	watched, err := s.units.Services(ctx)
	if err != nil {
		s.log.Warn("watch list unavailable", logx.Err(err))
		return
	}

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	now := s.now()
	seen := make(map[string]bool, len(watched))
	for _, name := range watched {
		if seen[name] {
			continue
		}
		seen[name] = true

		st, err := s.status.Status(ctx, name)
		if err != nil {
			s.log.Debug("status unavailable", logx.String("unit", name), logx.Err(err))
			continue
		}
		s.observe(ctx, cfg, name, st.ActiveState, now, prime)
	}

	// Forget units that left the watch list.
	s.mu.Lock()
	for name := range s.prev {
		if !seen[name] {
			delete(s.prev, name)
			delete(s.down, name)
		}
	}
	s.mu.Unlock()
}

func (s *Service) observe(ctx context.Context, cfg Config, name, state string, now time.Time, prime bool) {
	s.mu.Lock()
	prevState, known := s.prev[name]
	s.prev[name] = state
	s.mu.Unlock()

	if known && prevState != state && !prime {
		metrics.MonitorTransitions.Inc()
		s.emit(Event{Unit: name, From: prevState, To: state, At: now, ID: uuid.NewString()})
		s.log.Info("unit state changed",
			logx.String("unit", name),
			logx.String("from", prevState),
			logx.String("to", state),
		)
	}

	if cfg.AutoRestart && s.rest != nil {
		s.maybeRestart(ctx, cfg, name, state, now)
	}
}

func (s *Service) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		// Drop the oldest so the stream stays current.
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- ev:
		default:
		}
	}
}

func (s *Service) maybeRestart(ctx context.Context, cfg Config, name, state string, now time.Time) {
	s.mu.Lock()
	rs := s.down[name]
	if state != "failed" {
		delete(s.down, name)
		s.mu.Unlock()
		return
	}
	if rs == nil {
		s.down[name] = &recoverState{downSince: now}
		s.mu.Unlock()
		return
	}
	downFor := now.Sub(rs.downSince)
	ready := downFor >= cfg.MinDown && (rs.nextTry.IsZero() || !now.Before(rs.nextTry))
	s.mu.Unlock()
	if !ready {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, cfg.RestartTimeout)
	err := s.rest.Restart(opCtx, name)
	cancel()

	if err == nil {
		s.log.Info("auto-restart ok", logx.String("unit", name), logx.Duration("down_for", downFor))
		s.auditRestart(ctx, name, true, "")
		s.mu.Lock()
		delete(s.down, name)
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	rs.failStreak++
	streak := rs.failStreak
	backoff := cfg.BackoffBase
	if streak > 1 {
		shift := streak - 1
		if shift > 30 {
			shift = 30
		}
		backoff = cfg.BackoffBase * time.Duration(1<<shift)
	}
	if backoff > cfg.BackoffMax {
		backoff = cfg.BackoffMax
	}
	jitter := 0.7 + s.rng.Float64()*0.6 // 0.7..1.3
	rs.nextTry = now.Add(time.Duration(float64(backoff) * jitter))
	s.mu.Unlock()

	s.log.Warn("auto-restart failed",
		logx.String("unit", name),
		logx.Int("streak", streak),
		logx.Duration("down_for", downFor),
		logx.Duration("backoff", backoff),
		logx.Err(err),
	)
	s.auditRestart(ctx, name, false, err.Error())
}

func (s *Service) auditRestart(ctx context.Context, name string, ok bool, errStr string) {
	if s.audit == nil {
		return
	}
	e := storage.AuditEntry{
		At:     s.now(),
		Actor:  "monitor",
		Action: "restart",
		Unit:   name,
		OK:     ok,
		Error:  errStr,
	}
	if err := s.audit.AppendAudit(ctx, e); err != nil {
		s.log.Debug("audit append failed", logx.Err(err))
	}
}
