// Package watchlist keeps the sets of units an operator cares about
// and resolves them into status rows. The sets live in storage as
// JSON string arrays under fixed keys, so they survive restarts and
// stay readable with any JSON tool.
package watchlist

import (
	"context"
	"encoding/json"
	"fmt"

	"unitdeck/internal/storage"
	"unitdeck/internal/unit"
	"unitdeck/pkg/logx"
)

const (
	servicesKey = "watched_services"
	timersKey   = "watched_timers"
)

// StatusClient resolves one service's live state.
type StatusClient interface {
	Status(ctx context.Context, name string) (unit.Status, error)
}

// TimerInfoClient resolves one timer's descriptor.
type TimerInfoClient interface {
	Info(ctx context.Context, name string) (unit.TimerInfo, error)
}

// HistoryClient reports recent executions of a service.
type HistoryClient interface {
	History(ctx context.Context, service string, limit int) ([]unit.ExecutionRecord, error)
}

// ServiceRow is one watched service resolved for display. A unit the
// control plane cannot answer for still gets a row, with every state
// field set to "unknown".
type ServiceRow struct {
	Name          string `json:"name"`
	Status        string `json:"status"`
	ActiveState   string `json:"active_state"`
	SubState      string `json:"sub_state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// TimerRow is one watched timer resolved for display.
type TimerRow struct {
	Name          string `json:"name"`
	Service       string `json:"service"`
	Enabled       bool   `json:"enabled"`
	Schedule      string `json:"schedule"`
	ScheduleHuman string `json:"schedule_human"`
	NextRun       string `json:"next_run,omitempty"`
	LastRun       string `json:"last_run,omitempty"`
	LastResult    string `json:"last_result,omitempty"`
}

// Manager owns the watch lists. Batch resolution queries units one at
// a time; the control plane serializes unit operations anyway and a
// watch list is small.
type Manager struct {
	store    storage.Store
	services StatusClient
	timers   TimerInfoClient
	history  HistoryClient
	log      logx.Logger
}

func NewManager(store storage.Store, services StatusClient, timers TimerInfoClient, history HistoryClient, log logx.Logger) *Manager {
	return &Manager{store: store, services: services, timers: timers, history: history, log: log}
}

// Services returns the watched service names, in stored order.
func (m *Manager) Services(ctx context.Context) ([]string, error) {
	return m.load(ctx, servicesKey)
}

// Timers returns the watched timer names, in stored order.
func (m *Manager) Timers(ctx context.Context) ([]string, error) {
	return m.load(ctx, timersKey)
}

// SetServices replaces the watched service set. Every name is
// validated first; one bad name rejects the whole set.
func (m *Manager) SetServices(ctx context.Context, names []string) error {
	for _, n := range names {
		if err := unit.ValidateServiceName(n); err != nil {
			return err
		}
	}
	return m.save(ctx, servicesKey, names)
}

// SetTimers replaces the watched timer set.
func (m *Manager) SetTimers(ctx context.Context, names []string) error {
	for _, n := range names {
		if err := unit.ValidateTimerName(n); err != nil {
			return err
		}
	}
	return m.save(ctx, timersKey, names)
}

// ServiceStatuses resolves every watched service into a row, keeping
// stored order. Unreachable units become "unknown" rows instead of
// failing the batch.
func (m *Manager) ServiceStatuses(ctx context.Context) ([]ServiceRow, error) {
	names, err := m.Services(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]ServiceRow, 0, len(names))
	for _, name := range names {
		st, err := m.services.Status(ctx, name)
		if err != nil {
			m.log.Warn("watched service unreachable", logx.String("unit", name), logx.Err(err))
			rows = append(rows, ServiceRow{
				Name:        name,
				Status:      "unknown",
				ActiveState: "unknown",
				SubState:    "unknown",
			})
			continue
		}
		rows = append(rows, ServiceRow{
			Name:          st.Name,
			Status:        simpleStatus(st.ActiveState),
			ActiveState:   st.ActiveState,
			SubState:      st.SubState,
			UptimeSeconds: st.UptimeSeconds,
		})
	}
	return rows, nil
}

// TimerStatuses resolves every watched timer into a row. The last
// result column comes from the most recent execution of the timer's
// service; a timer that cannot be resolved still gets a row.
func (m *Manager) TimerStatuses(ctx context.Context) ([]TimerRow, error) {
	names, err := m.Timers(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]TimerRow, 0, len(names))
	for _, name := range names {
		info, err := m.timers.Info(ctx, name)
		if err != nil {
			m.log.Warn("watched timer unreachable", logx.String("unit", name), logx.Err(err))
			rows = append(rows, TimerRow{
				Name:          name,
				Service:       fallbackService(name),
				Schedule:      "unknown",
				ScheduleHuman: "Unable to read schedule",
			})
			continue
		}
		rows = append(rows, TimerRow{
			Name:          info.Name,
			Service:       info.Service,
			Enabled:       info.Enabled,
			Schedule:      info.Schedule,
			ScheduleHuman: info.ScheduleHuman,
			NextRun:       info.NextRun,
			LastRun:       info.LastTrigger,
			LastResult:    m.lastResult(ctx, info.Service),
		})
	}
	return rows, nil
}

func (m *Manager) lastResult(ctx context.Context, service string) string {
	records, err := m.history.History(ctx, service, 1)
	if err != nil || len(records) == 0 {
		return ""
	}
	return string(records[0].Status)
}

func (m *Manager) load(ctx context.Context, key string) ([]string, error) {
	raw, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, &unit.Error{Kind: unit.KindParse, Op: "watchlist", Err: fmt.Errorf("decode %s: %w", key, err)}
	}
	return names, nil
}

func (m *Manager) save(ctx context.Context, key string, names []string) error {
	deduped := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		deduped = append(deduped, n)
	}

	raw, err := json.Marshal(deduped)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, key, string(raw)); err != nil {
		return err
	}
	m.log.Info("watch list updated", logx.String("key", key), logx.Int("count", len(deduped)))
	return nil
}

func simpleStatus(activeState string) string {
	switch activeState {
	case "active":
		return "running"
	case "failed":
		return "failed"
	default:
		return "inactive"
	}
}

func fallbackService(timer string) string {
	if svc, err := unit.ServiceForTimer(timer); err == nil {
		return svc
	}
	return timer
}
