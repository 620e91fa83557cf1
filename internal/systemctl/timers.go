package systemctl

import (
	"context"

	"unitdeck/internal/command"
	"unitdeck/internal/metrics"
	"unitdeck/internal/unit"
	"unitdeck/pkg/logx"
)

// TimerClient drives systemctl for timer units.
type TimerClient struct {
	runner command.Runner
	bin    string
	log    logx.Logger
}

func NewTimerClient(runner command.Runner, cfg Config, log logx.Logger) *TimerClient {
	bin := cfg.SystemctlPath
	if bin == "" {
		bin = "systemctl"
	}
	return &TimerClient{runner: runner, bin: bin, log: log}
}

// List returns every timer the control plane knows about, including
// inactive ones. Rows carry only what the table output provides; Info
// fills in the rest for a single timer.
func (c *TimerClient) List(ctx context.Context) ([]unit.TimerListEntry, error) {
	out, err := c.runner.Run(ctx, c.bin, "list-timers", "--all", "--no-pager", "--plain")
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		return nil, exitError("systemctl list-timers", "", out)
	}
	timers := parseTimerList(out.Stdout)
	c.log.Debug("listed timers", logx.Int("count", len(timers)))
	return timers, nil
}

// Info resolves the full descriptor for one timer.
func (c *TimerClient) Info(ctx context.Context, name string) (unit.TimerInfo, error) {
	if err := unit.ValidateTimerName(name); err != nil {
		return unit.TimerInfo{}, err
	}
	out, err := c.runner.Run(ctx, c.bin, "show", name,
		"--property=Id,LoadState,UnitFileState,ActiveState,NextElapseUSecRealtime,LastTriggerUSec,TimersCalendar")
	if err != nil {
		return unit.TimerInfo{}, err
	}
	if out.ExitCode != 0 {
		return unit.TimerInfo{}, exitError("systemctl show", name, out)
	}
	return parseTimerInfo(name, out.Stdout)
}

// Run triggers the timer's service immediately without waiting for it
// to finish.
func (c *TimerClient) Run(ctx context.Context, name string) error {
	if err := unit.ValidateTimerName(name); err != nil {
		metrics.UnitActions.WithLabelValues("run", "rejected").Inc()
		return err
	}
	service, err := unit.ServiceForTimer(name)
	if err != nil {
		metrics.UnitActions.WithLabelValues("run", "rejected").Inc()
		return err
	}
	out, err := c.runner.Run(ctx, c.bin, "start", "--no-block", service)
	if err != nil {
		metrics.UnitActions.WithLabelValues("run", "error").Inc()
		return err
	}
	if out.ExitCode != 0 {
		metrics.UnitActions.WithLabelValues("run", "error").Inc()
		return exitError("systemctl start", service, out)
	}
	metrics.UnitActions.WithLabelValues("run", "ok").Inc()
	c.log.Info("timer run requested", logx.String("timer", name), logx.String("service", service))
	return nil
}

// Enable turns the timer on at boot and then starts it. The two steps
// are not transactional: when the second fails the timer stays enabled
// but stopped, and the error names the step that failed.
func (c *TimerClient) Enable(ctx context.Context, name string) error {
	if err := unit.ValidateTimerName(name); err != nil {
		metrics.UnitActions.WithLabelValues("enable", "rejected").Inc()
		return err
	}
	if err := c.step(ctx, "enable", name); err != nil {
		metrics.UnitActions.WithLabelValues("enable", "error").Inc()
		return err
	}
	if err := c.step(ctx, "start", name); err != nil {
		metrics.UnitActions.WithLabelValues("enable", "error").Inc()
		return err
	}
	metrics.UnitActions.WithLabelValues("enable", "ok").Inc()
	c.log.Info("timer enabled", logx.String("timer", name))
	return nil
}

// Disable stops the timer and then removes it from boot, in that
// order. Like Enable it aborts on the first failing step.
func (c *TimerClient) Disable(ctx context.Context, name string) error {
	if err := unit.ValidateTimerName(name); err != nil {
		metrics.UnitActions.WithLabelValues("disable", "rejected").Inc()
		return err
	}
	if err := c.step(ctx, "stop", name); err != nil {
		metrics.UnitActions.WithLabelValues("disable", "error").Inc()
		return err
	}
	if err := c.step(ctx, "disable", name); err != nil {
		metrics.UnitActions.WithLabelValues("disable", "error").Inc()
		return err
	}
	metrics.UnitActions.WithLabelValues("disable", "ok").Inc()
	c.log.Info("timer disabled", logx.String("timer", name))
	return nil
}

func (c *TimerClient) step(ctx context.Context, verb, name string) error {
	out, err := c.runner.Run(ctx, c.bin, verb, name)
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return exitError("systemctl "+verb, name, out)
	}
	return nil
}
