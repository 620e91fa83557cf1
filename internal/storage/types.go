package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (snapshot + jsonl journal)
//   - "sqlite": SQLite database file (optional build tag)
//   - "memory", "none" or empty: in-process only, nothing survives a restart
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records an operator action against a unit.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At     time.Time
	Actor  string
	Action string
	Unit   string
	OK     bool
	Error  string
	TookMS int64
}
