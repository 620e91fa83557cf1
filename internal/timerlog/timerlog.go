// Package timerlog reconstructs execution history from per-run log
// files, for services whose output is redirected to disk instead of
// the journal.
//
// Layout under the base directory, one directory per service:
//
//	<base>/<service-base>/2026-01-15_140000.log
//	<base>/<service-base>/latest.log
//
// Each file is one run and its stem doubles as the invocation id. A
// trailing "[END] <timestamp> exit_code=<n> duration=<n>s" line closes
// a run; a file without one counts as still in flight.
package timerlog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"unitdeck/internal/unit"
	"unitdeck/pkg/logx"
)

const (
	// DefaultBaseDir is where timer wrapper scripts drop per-run logs.
	DefaultBaseDir = "/var/log/timers"

	// DefaultTailDir holds the rolling per-service log files served as
	// detail output.
	DefaultTailDir = "/var/log"

	// maxTailBytes bounds how much of a rolling log file Tail reads.
	maxTailBytes = 256 << 10
)

// Config locates the log directories. Empty fields take the defaults.
type Config struct {
	BaseDir string
	TailDir string
}

// Reader reconstructs execution records from run log files.
type Reader struct {
	baseDir string
	tailDir string
	log     logx.Logger
}

func NewReader(cfg Config, log logx.Logger) *Reader {
	base := cfg.BaseDir
	if base == "" {
		base = DefaultBaseDir
	}
	tail := cfg.TailDir
	if tail == "" {
		tail = DefaultTailDir
	}
	return &Reader{baseDir: base, tailDir: tail, log: log}
}

// History lists the recorded runs of a service, newest first, up to
// limit when it is positive. A missing log directory yields no runs.
func (r *Reader) History(service string, limit int) ([]unit.ExecutionRecord, error) {
	dir := filepath.Join(r.baseDir, serviceBase(service))
	names, err := runFiles(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &unit.Error{Kind: unit.KindIO, Op: "timerlog", Unit: service, Err: err}
	}
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	var records []unit.ExecutionRecord
	for _, name := range names {
		rec, err := r.readRecord(dir, name)
		if err != nil {
			r.log.Debug("skipping unreadable run log", logx.String("file", name), logx.Err(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Detail reads one run's full log file. The invocation id is the file
// stem, so it is validated before it touches a path.
func (r *Reader) Detail(service, invocationID string) (unit.ExecutionDetail, error) {
	if err := unit.ValidateName(invocationID); err != nil {
		return unit.ExecutionDetail{}, err
	}
	path := filepath.Join(r.baseDir, serviceBase(service), invocationID+".log")
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return unit.ExecutionDetail{}, &unit.Error{
				Kind: unit.KindNotFound,
				Op:   "timerlog",
				Unit: service,
				Err:  fmt.Errorf("no run log for invocation %s", invocationID),
			}
		}
		return unit.ExecutionDetail{}, &unit.Error{Kind: unit.KindIO, Op: "timerlog", Unit: service, Err: err}
	}

	lines := splitLines(string(content))
	if len(lines) == 0 {
		return unit.ExecutionDetail{}, &unit.Error{Kind: unit.KindParse, Op: "timerlog", Unit: service, Err: errors.New("empty run log")}
	}

	detail := unit.ExecutionDetail{ExecutionRecord: runRecord(invocationID, lines[len(lines)-1])}
	for _, l := range lines {
		if strings.HasPrefix(l, "[START]") || strings.HasPrefix(l, "[END]") {
			continue
		}
		detail.Output = append(detail.Output, l)
	}
	return detail, nil
}

// Tail returns the last n lines of the service's rolling log file,
// <tailDir>/<service-base>.log. A missing file yields no lines and no
// error.
func (r *Reader) Tail(service string, n int) ([]string, error) {
	path := filepath.Join(r.tailDir, serviceBase(service)+".log")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &unit.Error{Kind: unit.KindIO, Op: "timerlog", Unit: service, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &unit.Error{Kind: unit.KindIO, Op: "timerlog", Unit: service, Err: err}
	}

	var (
		content []byte
		partial bool
	)
	if info.Size() > maxTailBytes {
		content = make([]byte, maxTailBytes)
		if _, err := f.ReadAt(content, info.Size()-maxTailBytes); err != nil {
			return nil, &unit.Error{Kind: unit.KindIO, Op: "timerlog", Unit: service, Err: err}
		}
		partial = true
	} else if content, err = io.ReadAll(f); err != nil {
		return nil, &unit.Error{Kind: unit.KindIO, Op: "timerlog", Unit: service, Err: err}
	}

	lines := splitLines(string(content))
	if partial && len(lines) > 0 {
		// A bounded read can start mid-line.
		lines = lines[1:]
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

func (r *Reader) readRecord(dir, filename string) (unit.ExecutionRecord, error) {
	content, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		return unit.ExecutionRecord{}, err
	}
	last := ""
	if lines := splitLines(string(content)); len(lines) > 0 {
		last = strings.TrimSpace(lines[len(lines)-1])
	}
	return runRecord(strings.TrimSuffix(filename, ".log"), last), nil
}

// runFiles lists run logs in dir, newest first. The fixed-width
// timestamp names make lexicographic order chronological.
func runFiles(dir string) ([]string, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, d := range dirents {
		name := d.Name()
		if d.IsDir() || !strings.HasSuffix(name, ".log") || name == "latest.log" {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] > names[j] })
	return names, nil
}

type endMarker struct {
	timestamp string
	exitCode  *int
	duration  *int64
}

func runRecord(id, lastLine string) unit.ExecutionRecord {
	rec := unit.ExecutionRecord{
		InvocationID: id,
		StartTime:    filenameTime(id),
		Status:       unit.StatusRunning,
		Trigger:      unit.TriggerScheduled,
	}
	m, ok := parseEndLine(lastLine)
	if !ok {
		return rec
	}
	rec.EndTime = m.timestamp
	rec.ExitCode = m.exitCode
	rec.DurationSeconds = m.duration
	if m.exitCode != nil && *m.exitCode != 0 {
		rec.Status = unit.StatusFailed
	} else {
		rec.Status = unit.StatusSuccess
	}
	return rec
}

func parseEndLine(line string) (endMarker, bool) {
	if !strings.HasPrefix(line, "[END]") {
		return endMarker{}, false
	}
	var m endMarker
	if after, ok := strings.CutPrefix(line, "[END] "); ok {
		if f := strings.Fields(after); len(f) > 0 {
			m.timestamp = f[0]
		}
	}
	if v, ok := extractValue(line, "exit_code="); ok {
		if n, err := strconv.Atoi(v); err == nil {
			m.exitCode = &n
		}
	}
	if v, ok := extractValue(line, "duration="); ok {
		if n, err := strconv.ParseUint(strings.TrimSuffix(v, "s"), 10, 63); err == nil {
			d := int64(n)
			m.duration = &d
		}
	}
	return m, true
}

// extractValue returns the whitespace-delimited token following key.
func extractValue(line, key string) (string, bool) {
	_, after, ok := strings.Cut(line, key)
	if !ok {
		return "", false
	}
	f := strings.Fields(after)
	if len(f) == 0 {
		return "", false
	}
	return f[0], true
}

// filenameTime converts a fixed-width "2006-01-02_150405" file stem
// into "2006-01-02 15:04:05". Anything else passes through.
func filenameTime(stem string) string {
	if len(stem) >= 17 {
		date, clock := stem[:10], stem[11:17]
		return fmt.Sprintf("%s %s:%s:%s", date, clock[0:2], clock[2:4], clock[4:6])
	}
	return stem
}

func serviceBase(service string) string {
	return strings.TrimSuffix(service, ".service")
}

// splitLines mirrors line iteration over file content: a final
// trailing newline does not produce an empty last line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
