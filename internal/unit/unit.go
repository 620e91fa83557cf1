// Package unit defines the typed domain model shared by the systemctl,
// journal and timer-log clients: unit summaries and statuses, timer
// descriptors, log entries, execution history records, and the error
// taxonomy every client reports through.
package unit

import "time"

// Summary is one row of a bulk unit listing.
type Summary struct {
	Name        string `json:"name"`
	LoadState   string `json:"load_state"`
	ActiveState string `json:"active_state"`
	SubState    string `json:"sub_state"`
	Description string `json:"description"`
}

// Status is the detailed state of a single service unit.
//
// UptimeSeconds is derived from ActiveEnter at query time and is zero
// when the enter timestamp is unknown. MainPID zero means systemd did
// not report a main process.
type Status struct {
	Name          string     `json:"name"`
	ActiveState   string     `json:"active_state"`
	SubState      string     `json:"sub_state"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	MainPID       int        `json:"main_pid,omitempty"`
	ActiveEnter   *time.Time `json:"active_enter,omitempty"`
}

// LogEntry is one normalized journal line.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Priority  int       `json:"priority"`
}

// TimerInfo describes one timer unit in full.
type TimerInfo struct {
	Name          string `json:"name"`
	Enabled       bool   `json:"enabled"`
	Schedule      string `json:"schedule"`
	ScheduleHuman string `json:"schedule_human,omitempty"`
	NextRun       string `json:"next_run,omitempty"`
	LastTrigger   string `json:"last_trigger,omitempty"`
	Service       string `json:"service"`
}

// TimerListEntry is one row of `systemctl list-timers`.
type TimerListEntry struct {
	Unit        string `json:"unit"`
	Activates   string `json:"activates"`
	NextRun     string `json:"next_run,omitempty"`
	LastTrigger string `json:"last_trigger,omitempty"`
}
