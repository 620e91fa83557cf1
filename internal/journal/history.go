package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"unitdeck/internal/command"
	"unitdeck/internal/unit"
	"unitdeck/pkg/logx"
)

const (
	// DefaultHistoryLimit bounds a history query when the caller does
	// not say how many executions it wants.
	DefaultHistoryLimit = 20

	// historyWindow keeps history queries from walking the whole
	// journal.
	historyWindow = "7 days ago"

	// tailLines is how much of a service's own log file replaces the
	// journal messages in a detail response.
	tailLines = 200
)

// Config points the client at the journalctl binary. An empty path
// falls back to the bare name resolved via PATH.
type Config struct {
	JournalctlPath string
}

// Fallback reconstructs executions from per-run log files for services
// whose output never reaches the journal.
type Fallback interface {
	History(service string, limit int) ([]unit.ExecutionRecord, error)
	Detail(service, invocationID string) (unit.ExecutionDetail, error)
	Tail(service string, n int) ([]string, error)
}

// Client reconstructs discrete executions from the journal stream,
// consulting an optional file-based Fallback when the stream has
// nothing for a service.
type Client struct {
	runner   command.Runner
	bin      string
	fallback Fallback
	log      logx.Logger
}

// NewClient wires a runner to journalctl. fallback may be nil.
func NewClient(runner command.Runner, cfg Config, fallback Fallback, log logx.Logger) *Client {
	bin := cfg.JournalctlPath
	if bin == "" {
		bin = "journalctl"
	}
	return &Client{runner: runner, bin: bin, fallback: fallback, log: log}
}

// History reconstructs the recent executions of a service, newest
// first, up to limit. An empty journal is not an error; when it yields
// no executions at all the fallback, if any, answers instead.
func (c *Client) History(ctx context.Context, service string, limit int) ([]unit.ExecutionRecord, error) {
	if err := unit.ValidateServiceName(service); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	out, err := c.runner.Run(ctx, c.bin, "-u", service, "--since", historyWindow, "-o", "json", "--no-pager")
	if err != nil {
		return nil, err
	}
	var entries []entry
	if out.ExitCode != 0 {
		if !IsEmpty(out.Stderr) {
			return nil, ExitError("journalctl", service, out)
		}
	} else {
		entries = c.parseLenient(out.Stdout)
	}

	records, err := groupHistory(entries, limit)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 && c.fallback != nil {
		return c.fallback.History(service, limit)
	}
	return records, nil
}

// Detail returns one execution with its full output lines. When the
// fallback can tail the service's own log file, that tail replaces the
// journal messages.
func (c *Client) Detail(ctx context.Context, service, invocationID string) (unit.ExecutionDetail, error) {
	if err := unit.ValidateServiceName(service); err != nil {
		return unit.ExecutionDetail{}, err
	}
	if err := unit.ValidateName(invocationID); err != nil {
		return unit.ExecutionDetail{}, err
	}

	out, err := c.runner.Run(ctx, c.bin, "-u", service, "INVOCATION_ID="+invocationID, "-o", "json", "--no-pager")
	if err != nil {
		return unit.ExecutionDetail{}, err
	}
	var entries []entry
	if out.ExitCode != 0 {
		if !IsEmpty(out.Stderr) {
			return unit.ExecutionDetail{}, ExitError("journalctl", service, out)
		}
	} else {
		entries = c.parseLenient(out.Stdout)
	}

	if len(entries) == 0 {
		if c.fallback != nil {
			return c.fallback.Detail(service, invocationID)
		}
		return unit.ExecutionDetail{}, &unit.Error{
			Kind: unit.KindNotFound,
			Op:   "journalctl",
			Unit: service,
			Err:  fmt.Errorf("invocation %s not found", invocationID),
		}
	}

	rec, _, err := buildRecord(invocationID, entries)
	if err != nil {
		return unit.ExecutionDetail{}, err
	}
	detail := unit.ExecutionDetail{ExecutionRecord: rec}
	for _, e := range entries {
		if e.Message != nil {
			detail.Output = append(detail.Output, *e.Message)
		}
	}

	if c.fallback != nil {
		if lines, err := c.fallback.Tail(service, tailLines); err == nil && len(lines) > 0 {
			detail.Output = lines
		}
	}
	return detail, nil
}

// entry is one decoded journalctl JSON line. journald omits fields it
// does not know; EXIT_STATUS and MESSAGE keep their pointer form
// because presence matters (an EXIT_STATUS field is the end marker).
type entry struct {
	InvocationID string  `json:"INVOCATION_ID"`
	Timestamp    string  `json:"__REALTIME_TIMESTAMP"`
	Message      *string `json:"MESSAGE"`
	ExitStatus   *string `json:"EXIT_STATUS"`
	Unit         string  `json:"_SYSTEMD_UNIT"`
}

func (c *Client) parseLenient(out string) []entry {
	var entries []entry
	skipped := 0
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if skipped > 0 {
		c.log.Debug("skipped unparseable journal lines", logx.Int("count", skipped))
	}
	return entries
}

// groupHistory folds entries into per-invocation records, newest
// first. Sorting happens on the raw microsecond strings, which are
// fixed-width numerals, so lexicographic order is chronological.
func groupHistory(entries []entry, limit int) ([]unit.ExecutionRecord, error) {
	groups := make(map[string][]entry)
	for _, e := range entries {
		if e.InvocationID == "" {
			continue
		}
		groups[e.InvocationID] = append(groups[e.InvocationID], e)
	}

	type sortable struct {
		rec      unit.ExecutionRecord
		startRaw string
	}
	history := make([]sortable, 0, len(groups))
	for id, es := range groups {
		rec, startRaw, err := buildRecord(id, es)
		if err != nil {
			return nil, err
		}
		history = append(history, sortable{rec: rec, startRaw: startRaw})
	}

	sort.Slice(history, func(i, j int) bool { return history[i].startRaw > history[j].startRaw })
	if len(history) > limit {
		history = history[:limit]
	}

	records := make([]unit.ExecutionRecord, len(history))
	for i, h := range history {
		records[i] = h.rec
	}
	return records, nil
}

// buildRecord derives one execution from its entries, which arrive in
// journal output order. The presence of an EXIT_STATUS field anywhere
// in the group is the end marker; without one the run is still in
// flight.
func buildRecord(id string, entries []entry) (unit.ExecutionRecord, string, error) {
	startRaw := entries[0].Timestamp
	if startRaw == "" {
		return unit.ExecutionRecord{}, "", &unit.Error{
			Kind: unit.KindParse,
			Op:   "journal",
			Err:  fmt.Errorf("no timestamp for invocation %s", id),
		}
	}

	var exitRaw *string
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].ExitStatus != nil {
			exitRaw = entries[i].ExitStatus
			break
		}
	}

	rec := unit.ExecutionRecord{
		InvocationID: id,
		StartTime:    formatTimestamp(startRaw),
		Status:       unit.StatusRunning,
		Trigger:      classifyTrigger(entries),
	}
	if exitRaw == nil {
		return rec, startRaw, nil
	}

	endRaw := entries[len(entries)-1].Timestamp
	rec.EndTime = formatTimestamp(endRaw)
	if d, ok := durationSeconds(startRaw, endRaw); ok {
		rec.DurationSeconds = &d
	}
	rec.Status = unit.StatusSuccess
	if code, err := strconv.Atoi(*exitRaw); err == nil {
		rec.ExitCode = &code
		if code != 0 {
			rec.Status = unit.StatusFailed
		}
	}
	return rec, startRaw, nil
}

func durationSeconds(start, end string) (int64, bool) {
	s, err1 := strconv.ParseUint(start, 10, 64)
	e, err2 := strconv.ParseUint(end, 10, 64)
	if err1 != nil || err2 != nil || e <= s {
		return 0, false
	}
	return int64((e - s) / 1_000_000), true
}

// formatTimestamp renders raw epoch microseconds as a UTC
// "2006-01-02 15:04:05" string. Unparseable input passes through.
func formatTimestamp(raw string) string {
	us, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return raw
	}
	return time.Unix(us/1_000_000, 0).UTC().Format("2006-01-02 15:04:05")
}

func classifyTrigger(entries []entry) unit.Trigger {
	for _, e := range entries {
		if e.Message == nil {
			continue
		}
		msg := *e.Message
		if strings.Contains(msg, "timer") || strings.Contains(msg, "scheduled") {
			return unit.TriggerScheduled
		}
		if strings.Contains(msg, "manual") || strings.Contains(msg, "systemctl start") {
			return unit.TriggerManual
		}
	}
	return unit.TriggerScheduled
}
