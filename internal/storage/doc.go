// Package storage persists the daemon's small mutable state:
//   - Key/value entries (watch lists live here as JSON arrays)
//   - Audit log appends (operator actions against units)
//
// The file driver needs no cgo and no extra dependency; the sqlite
// driver is compiled in with -tags sqlite. Without a configured
// driver everything is held in memory and lost on restart.
package storage
