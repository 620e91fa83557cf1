// Package schedule decodes timer activation rules and renders them for
// humans.
//
// A timer carries up to three activation properties: an OnCalendar
// expression, an OnBootSec delay and an OnUnitActiveSec interval.
// Parse folds whichever are present into a single Schedule value.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"unitdeck/internal/unit"
)

// Schedule is one activation rule of a timer unit. The concrete types
// are Calendar, OnBoot, Recurring and Composite.
type Schedule interface {
	// Humanize renders the rule as a short display phrase.
	Humanize() string

	schedule()
}

// Calendar holds a raw OnCalendar expression.
type Calendar struct {
	Expression string
}

// OnBoot fires once, a fixed delay after boot.
type OnBoot struct {
	Seconds int64
}

// Recurring fires repeatedly at a fixed interval after each activation.
type Recurring struct {
	Seconds int64
}

// Composite joins several rules declared on the same timer.
type Composite []Schedule

func (Calendar) schedule()  {}
func (OnBoot) schedule()    {}
func (Recurring) schedule() {}
func (Composite) schedule() {}

// Parse folds the raw OnCalendar, OnBootSec and OnUnitActiveSec values
// of a timer into one Schedule. Empty strings mean the property is
// absent; at least one must be present.
func Parse(onCalendar, onBoot, onActive string) (Schedule, error) {
	var rules []Schedule

	if onCalendar != "" {
		rules = append(rules, Calendar{Expression: onCalendar})
	}
	if onBoot != "" {
		secs, err := ParseTimeSpan(onBoot)
		if err != nil {
			return nil, err
		}
		rules = append(rules, OnBoot{Seconds: secs})
	}
	if onActive != "" {
		secs, err := ParseTimeSpan(onActive)
		if err != nil {
			return nil, err
		}
		rules = append(rules, Recurring{Seconds: secs})
	}

	switch len(rules) {
	case 0:
		return nil, &unit.Error{Kind: unit.KindParse, Op: "schedule", Err: errors.New("no schedule information found")}
	case 1:
		return rules[0], nil
	default:
		return Composite(rules), nil
	}
}

// spanUnits is ordered so longer suffixes win before their single-letter
// tails ("hours" must match before "s").
var spanUnits = []struct {
	suffix string
	mult   int64
}{
	{"min", 60},
	{"hours", 3600},
	{"hour", 3600},
	{"sec", 1},
	{"m", 60},
	{"h", 3600},
	{"s", 1},
}

// ParseTimeSpan converts a systemd time span such as "5min", "2h",
// "30sec" or bare seconds ("120") into whole seconds.
func ParseTimeSpan(s string) (int64, error) {
	s = strings.TrimSpace(s)
	for _, u := range spanUnits {
		num, ok := strings.CutSuffix(s, u.suffix)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSpace(num), 10, 63)
		if err != nil {
			return 0, spanError(s)
		}
		return int64(n) * u.mult, nil
	}
	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, spanError(s)
	}
	return int64(n), nil
}

func spanError(s string) error {
	return &unit.Error{Kind: unit.KindParse, Op: "schedule", Err: fmt.Errorf("invalid time span %q", s)}
}

func (c Calendar) Humanize() string { return humanizeCalendar(c.Expression) }

func (b OnBoot) Humanize() string { return HumanizeDuration(b.Seconds) + " after boot" }

func (r Recurring) Humanize() string { return "Every " + HumanizeDuration(r.Seconds) }

func (m Composite) Humanize() string {
	parts := make([]string, len(m))
	for i, s := range m {
		parts[i] = s.Humanize()
	}
	return strings.Join(parts, ", ")
}

// HumanizeDuration renders a second count in its largest natural unit
// plus one finer unit when that is non-zero: "30s", "1min 30s", "1h",
// "1d 1h".
func HumanizeDuration(seconds int64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		if rem := seconds % 60; rem != 0 {
			return fmt.Sprintf("%dmin %ds", seconds/60, rem)
		}
		return fmt.Sprintf("%dmin", seconds/60)
	case seconds < 86400:
		if rem := seconds % 3600 / 60; rem != 0 {
			return fmt.Sprintf("%dh %dmin", seconds/3600, rem)
		}
		return fmt.Sprintf("%dh", seconds/3600)
	default:
		if rem := seconds % 86400 / 3600; rem != 0 {
			return fmt.Sprintf("%dd %dh", seconds/86400, rem)
		}
		return fmt.Sprintf("%dd", seconds/86400)
	}
}

// humanizeCalendar rewrites well-known OnCalendar shapes into friendly
// phrases. Unrecognized expressions pass through untouched.
func humanizeCalendar(expression string) string {
	expr := strings.TrimSpace(expression)

	switch {
	case expr == "*-*-* *:*:*" || expr == "hourly":
		return "Hourly"
	case expr == "daily" || (strings.HasPrefix(expr, "*-*-*") && strings.Contains(expr, "00:00")):
		return "Daily at midnight"
	case expr == "weekly" || (strings.HasPrefix(expr, "Mon") && strings.Contains(expr, "00:00")):
		return "Weekly on Monday"
	case expr == "monthly":
		return "Monthly"
	}

	if rest, ok := strings.CutPrefix(expr, "Mon-Fri"); ok {
		timePart := strings.TrimSpace(rest)
		if strings.Contains(timePart, "08-21") || strings.Contains(timePart, "08:00-21:00") {
			return "Mon-Fri, 8 AM - 9 PM"
		}
		return "Mon-Fri " + timePart
	}

	if _, rest, ok := strings.Cut(expr, "Mon,Wed,Fri"); ok {
		return "Mon, Wed, Fri " + strings.TrimSpace(rest)
	}

	if strings.Contains(expr, "*:00:00") || strings.Contains(expr, "*:00") {
		if strings.Contains(expr, "08-21") || strings.Contains(expr, "08:00-21:00") {
			return "Hourly, 8 AM - 9 PM"
		}
	}

	return expression
}
