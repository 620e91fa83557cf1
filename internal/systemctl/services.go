// Package systemctl turns systemctl and journalctl invocations into
// the typed domain model: unit summaries, statuses, log entries and
// timer descriptors.
//
// Non-zero systemctl exits are mapped through a fixed table: 4 becomes
// a permission failure, 5 becomes not-found, anything else surfaces as
// a command failure carrying the exit code and captured stderr.
package systemctl

import (
	"context"
	"strconv"
	"strings"
	"time"

	"unitdeck/internal/command"
	"unitdeck/internal/journal"
	"unitdeck/internal/metrics"
	"unitdeck/internal/unit"
	"unitdeck/pkg/logx"
)

// DefaultLogLines bounds a log query when the caller does not say how
// many lines it wants.
const DefaultLogLines = 50

// Config points the clients at the control-plane binaries. Empty paths
// fall back to the bare names resolved via PATH.
type Config struct {
	SystemctlPath  string
	JournalctlPath string
}

// ServiceClient drives systemctl and journalctl for service units.
type ServiceClient struct {
	runner  command.Runner
	bin     string
	journal string
	log     logx.Logger
	now     func() time.Time
}

func NewServiceClient(runner command.Runner, cfg Config, log logx.Logger) *ServiceClient {
	bin := cfg.SystemctlPath
	if bin == "" {
		bin = "systemctl"
	}
	jbin := cfg.JournalctlPath
	if jbin == "" {
		jbin = "journalctl"
	}
	return &ServiceClient{runner: runner, bin: bin, journal: jbin, log: log, now: time.Now}
}

// List returns every installed service unit, active or not.
func (c *ServiceClient) List(ctx context.Context) ([]unit.Summary, error) {
	out, err := c.runner.Run(ctx, c.bin, "list-units", "--type=service", "--all", "--no-pager", "--plain", "--no-legend")
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		return nil, exitError("systemctl list-units", "", out)
	}
	units := parseUnitList(out.Stdout)
	c.log.Debug("listed service units", logx.Int("count", len(units)))
	return units, nil
}

// Status reports the detailed state of one service.
func (c *ServiceClient) Status(ctx context.Context, name string) (unit.Status, error) {
	if err := unit.ValidateServiceName(name); err != nil {
		return unit.Status{}, err
	}
	out, err := c.runner.Run(ctx, c.bin, "show", name, "--property=ActiveState,SubState,MainPID,ActiveEnterTimestamp")
	if err != nil {
		return unit.Status{}, err
	}
	if out.ExitCode != 0 {
		return unit.Status{}, exitError("systemctl show", name, out)
	}
	return parseUnitStatus(name, out.Stdout, c.now())
}

func (c *ServiceClient) Start(ctx context.Context, name string) error {
	return c.action(ctx, "start", name)
}

func (c *ServiceClient) Stop(ctx context.Context, name string) error {
	return c.action(ctx, "stop", name)
}

func (c *ServiceClient) Restart(ctx context.Context, name string) error {
	return c.action(ctx, "restart", name)
}

func (c *ServiceClient) action(ctx context.Context, verb, name string) error {
	if err := unit.ValidateServiceName(name); err != nil {
		metrics.UnitActions.WithLabelValues(verb, "rejected").Inc()
		return err
	}
	out, err := c.runner.Run(ctx, c.bin, verb, name)
	if err != nil {
		metrics.UnitActions.WithLabelValues(verb, "error").Inc()
		return err
	}
	if out.ExitCode != 0 {
		metrics.UnitActions.WithLabelValues(verb, "error").Inc()
		return exitError("systemctl "+verb, name, out)
	}
	metrics.UnitActions.WithLabelValues(verb, "ok").Inc()
	c.log.Info("service action applied", logx.String("unit", name), logx.String("action", verb))
	return nil
}

// Logs returns up to lines recent journal entries for a service. An
// empty journal is not an error: a unit that never ran has no entries.
func (c *ServiceClient) Logs(ctx context.Context, name string, lines int) ([]unit.LogEntry, error) {
	if err := unit.ValidateServiceName(name); err != nil {
		return nil, err
	}
	if lines <= 0 {
		lines = DefaultLogLines
	}
	out, err := c.runner.Run(ctx, c.journal, "-u", name, "-n", strconv.Itoa(lines), "--no-pager", "--output=json")
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		if journal.IsEmpty(out.Stderr) {
			return nil, nil
		}
		return nil, journal.ExitError("journalctl", name, out)
	}
	return journal.ParseEntries(out.Stdout)
}

func exitError(op, unitName string, out command.Output) error {
	e := &unit.Error{Op: op, Unit: unitName, ExitCode: out.ExitCode, Stderr: strings.TrimSpace(out.Stderr)}
	switch out.ExitCode {
	case 4:
		e.Kind = unit.KindPermissionDenied
	case 5:
		e.Kind = unit.KindNotFound
	default:
		e.Kind = unit.KindCommandFailed
	}
	return e
}
