package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// pollParser accepts 5-field and 6-field (with seconds) cron specs plus
// descriptors like "@hourly" and "@every 30s".
var pollParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// pollSpec is the parsed tick schedule: a cron schedule or a fixed
// interval.
type pollSpec struct {
	sched cron.Schedule
	every time.Duration
}

func (p pollSpec) next(now time.Time) time.Time {
	if p.every > 0 {
		return now.Add(p.every)
	}
	return p.sched.Next(now)
}

// parsePollSpec parses a poll schedule. Any whitespace or a leading
// '@' selects cron parsing; everything else must be a Go duration.
func parsePollSpec(raw string) (pollSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return pollSpec{}, fmt.Errorf("poll schedule required")
	}

	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		sched, err := pollParser.Parse(s)
		if err != nil {
			return pollSpec{}, fmt.Errorf("invalid poll schedule %q: %w", raw, err)
		}
		return pollSpec{sched: sched}, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return pollSpec{}, fmt.Errorf("invalid poll schedule %q (use a duration like '30s' or cron like '*/1 * * * *')", raw)
	}
	if d <= 0 {
		return pollSpec{}, fmt.Errorf("poll interval must be > 0")
	}
	return pollSpec{every: d}, nil
}

// ValidateSpec reports whether raw is an acceptable poll schedule. The
// daemon installs this as a config validator so a broken spec is
// rejected before it reaches a running monitor.
func ValidateSpec(raw string) error {
	_, err := parsePollSpec(raw)
	return err
}
