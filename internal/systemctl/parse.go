package systemctl

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"unitdeck/internal/schedule"
	"unitdeck/internal/unit"
)

// parseUnitList decodes the table emitted by
// `systemctl list-units --plain --no-legend`:
//
//	UNIT LOAD ACTIVE SUB DESCRIPTION
//
// Rows with fewer than four fields are skipped.
func parseUnitList(out string) []unit.Summary {
	var units []unit.Summary
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		s := unit.Summary{
			Name:        fields[0],
			LoadState:   fields[1],
			ActiveState: fields[2],
			SubState:    fields[3],
		}
		if len(fields) > 4 {
			s.Description = strings.Join(fields[4:], " ")
		}
		units = append(units, s)
	}
	return units
}

// parseUnitStatus decodes a `systemctl show` property dump. ActiveState
// and SubState are mandatory; everything else degrades to absent.
func parseUnitStatus(name, out string, now time.Time) (unit.Status, error) {
	st := unit.Status{Name: name}
	var haveActive, haveSub bool

	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "ActiveState":
			st.ActiveState = value
			haveActive = true
		case "SubState":
			st.SubState = value
			haveSub = true
		case "MainPID":
			if pid, err := strconv.Atoi(value); err == nil && pid > 0 {
				st.MainPID = pid
			}
		case "ActiveEnterTimestamp":
			st.ActiveEnter = parseEnterTimestamp(value)
		}
	}

	if !haveActive {
		return unit.Status{}, statusParseError(name, "missing ActiveState in output")
	}
	if !haveSub {
		return unit.Status{}, statusParseError(name, "missing SubState in output")
	}

	if st.ActiveEnter != nil {
		if up := int64(now.Sub(*st.ActiveEnter) / time.Second); up > 0 {
			st.UptimeSeconds = up
		}
	}
	return st, nil
}

func statusParseError(name, reason string) error {
	return &unit.Error{Kind: unit.KindParse, Op: "systemctl show", Unit: name, Err: errors.New(reason)}
}

// enterTimeLayouts covers the two shapes systemctl emits for enter
// timestamps: the textual form ("Wed 2024-01-15 10:30:45 UTC") and,
// on some versions, RFC 3339.
var enterTimeLayouts = []string{
	"Mon 2006-01-02 15:04:05 MST",
	time.RFC3339,
}

// parseEnterTimestamp reads a timestamp in any supported shape,
// including raw microseconds since the epoch. Unparseable values are
// treated as absent rather than failing the whole status.
func parseEnterTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range enterTimeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			t := ts.UTC()
			return &t
		}
	}
	if micros, err := strconv.ParseInt(value, 10, 64); err == nil {
		t := time.UnixMicro(micros).UTC()
		return &t
	}
	return nil
}

// parseTimerList decodes `systemctl list-timers --plain` rows:
//
//	NEXT (5 fields) LAST PASSED UNIT ACTIVATES
//
// Header and separator rows are skipped, as is anything too short to
// carry the full column set.
func parseTimerList(out string) []unit.TimerListEntry {
	var timers []unit.TimerListEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "NEXT") || strings.HasPrefix(line, "---") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 7 {
			continue
		}
		entry := unit.TimerListEntry{
			Unit:      fields[len(fields)-2],
			Activates: fields[len(fields)-1],
		}
		if fields[0] != "n/a" {
			entry.NextRun = strings.Join(fields[:5], " ")
		}
		if fields[5] != "n/a" {
			entry.LastTrigger = fields[5]
		}
		timers = append(timers, entry)
	}
	return timers
}

// parseTimerInfo decodes the property dump requested by TimerClient.Info.
// A LoadState of "not-found" means the timer does not exist at all.
func parseTimerInfo(name, out string) (unit.TimerInfo, error) {
	var (
		id          string
		loadState   string
		fileState   string
		activeState string
		nextRun     string
		lastTrigger string
		calendars   []string
	)

	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, "Id="); ok {
			id = v
		} else if v, ok := strings.CutPrefix(line, "LoadState="); ok {
			loadState = v
		} else if v, ok := strings.CutPrefix(line, "UnitFileState="); ok {
			fileState = v
		} else if v, ok := strings.CutPrefix(line, "ActiveState="); ok {
			activeState = v
		} else if v, ok := strings.CutPrefix(line, "NextElapseUSecRealtime="); ok {
			if v != "0" && v != "" {
				nextRun = v
			}
		} else if v, ok := strings.CutPrefix(line, "LastTriggerUSec="); ok {
			if v != "0" && v != "" {
				lastTrigger = v
			}
		} else if v, ok := strings.CutPrefix(line, "TimersCalendar="); ok {
			if cal, ok := extractOnCalendar(v); ok {
				calendars = append(calendars, cal)
			}
		}
	}

	if loadState == "not-found" {
		return unit.TimerInfo{}, &unit.Error{Kind: unit.KindNotFound, Op: "systemctl show", Unit: name}
	}

	info := unit.TimerInfo{
		Name:          id,
		Enabled:       fileState == "enabled" && activeState == "active",
		Schedule:      strings.Join(calendars, ", "),
		ScheduleHuman: humanizeCalendars(calendars),
		NextRun:       nextRun,
		LastTrigger:   lastTrigger,
	}
	if svc, err := unit.ServiceForTimer(name); err == nil {
		info.Service = svc
	} else {
		info.Service = name
	}
	return info, nil
}

// extractOnCalendar pulls the expression out of a TimersCalendar value,
// e.g. "{ OnCalendar=Mon-Fri 07:00 ; next_elapse=Fri ... }".
func extractOnCalendar(value string) (string, bool) {
	_, after, ok := strings.Cut(value, "OnCalendar=")
	if !ok {
		return "", false
	}
	end := strings.IndexByte(after, ';')
	if end < 0 {
		end = strings.IndexByte(after, '}')
	}
	if end < 0 {
		end = len(after)
	}
	cal := strings.TrimSpace(after[:end])
	if cal == "" {
		return "", false
	}
	return cal, true
}

func humanizeCalendars(entries []string) string {
	if len(entries) == 0 {
		return "Schedule not available"
	}
	parts := make([]string, len(entries))
	for i, e := range entries {
		s, err := schedule.Parse(e, "", "")
		if err != nil {
			parts[i] = e
			continue
		}
		parts[i] = s.Humanize()
	}
	return strings.Join(parts, ", ")
}
