// Package journal turns journalctl output into typed log entries and
// reconstructs discrete unit executions from the journald stream.
//
// journalctl emits one JSON object per line. The log parser here is
// strict about JSON validity; the history aggregator skips lines it
// cannot decode (binary payloads render as arrays) and groups the
// rest by invocation id.
package journal

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"unitdeck/internal/command"
	"unitdeck/internal/unit"
)

// ParseEntries decodes journalctl JSON lines into normalized log
// entries. Any line that is not valid JSON fails the whole batch.
// Missing fields degrade per line: empty message, priority 6, the
// current time.
func ParseEntries(out string) ([]unit.LogEntry, error) {
	var logs []unit.LogEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var raw map[string]any
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, &unit.Error{Kind: unit.KindParse, Op: "journalctl", Err: fmt.Errorf("invalid journal line: %w", err)}
		}
		e := unit.LogEntry{Priority: 6, Timestamp: time.Now().UTC()}
		if m, ok := raw["MESSAGE"].(string); ok {
			e.Message = m
		}
		if p, ok := raw["PRIORITY"].(string); ok {
			if n, err := strconv.Atoi(p); err == nil {
				e.Priority = n
			}
		}
		if ts, ok := raw["__REALTIME_TIMESTAMP"].(string); ok {
			if us, err := strconv.ParseInt(ts, 10, 64); err == nil {
				e.Timestamp = time.UnixMicro(us).UTC()
			}
		}
		logs = append(logs, e)
	}
	return logs, nil
}

// IsEmpty reports whether journalctl stderr indicates an empty or
// missing journal rather than a real failure.
func IsEmpty(stderr string) bool {
	return strings.Contains(stderr, "No journal files were found") ||
		strings.Contains(stderr, "No entries")
}

// ExitError maps a non-zero journalctl exit to the domain taxonomy.
// journalctl does not use distinct exit codes for missing units, so
// the classification reads stderr.
func ExitError(op, unitName string, out command.Output) error {
	e := &unit.Error{Op: op, Unit: unitName, ExitCode: out.ExitCode, Stderr: strings.TrimSpace(out.Stderr)}
	if strings.Contains(out.Stderr, "not found") || strings.Contains(out.Stderr, "does not exist") {
		e.Kind = unit.KindNotFound
	} else {
		e.Kind = unit.KindCommandFailed
	}
	return e
}
