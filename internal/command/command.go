// Package command runs control-plane programs (systemctl, journalctl)
// with a bounded timeout and captures their output for parsing.
package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"unitdeck/internal/metrics"
	"unitdeck/internal/unit"
	"unitdeck/pkg/logx"
)

// DefaultTimeout bounds a single invocation when the runner has no
// explicit timeout configured.
const DefaultTimeout = 10 * time.Second

// Output is the captured result of one process invocation.
//
// A non-zero ExitCode is not an error at this layer: the process ran
// and reported a status, and interpreting that status is the caller's
// job. Run only fails when no exit status could be produced at all.
type Output struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes an external program with a discrete argument vector.
//
// Arguments never pass through a shell. The vector goes to the OS
// as-is, so metacharacters inside an argument cannot change which
// program runs or smuggle in extra arguments.
type Runner interface {
	Run(ctx context.Context, prog string, args ...string) (Output, error)
}

// SystemRunner spawns real processes.
type SystemRunner struct {
	timeout time.Duration
	log     logx.Logger
}

func NewSystemRunner(timeout time.Duration, log logx.Logger) *SystemRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &SystemRunner{timeout: timeout, log: log}
}

func (r *SystemRunner) Run(ctx context.Context, prog string, args ...string) (Output, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, prog, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	took := time.Since(start)
	metrics.CommandDuration.WithLabelValues(prog).Observe(took.Seconds())

	if ctx.Err() != nil {
		metrics.CommandFailures.WithLabelValues(prog, "timeout").Inc()
		r.log.Warn("command timed out",
			logx.String("prog", prog),
			logx.String("args", strings.Join(args, " ")),
			logx.Duration("after", took),
		)
		return Output{}, &unit.Error{Kind: unit.KindTimeout, Op: prog, Err: ctx.Err()}
	}

	out := Output{
		Stdout: lossyString(stdout.Bytes()),
		Stderr: lossyString(stderr.Bytes()),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			metrics.CommandFailures.WithLabelValues(prog, "spawn").Inc()
			return Output{}, &unit.Error{Kind: unit.KindIO, Op: prog, Err: err}
		}
		out.ExitCode = exitErr.ExitCode()
	}

	r.log.Debug("command finished",
		logx.String("prog", prog),
		logx.String("args", strings.Join(args, " ")),
		logx.Int("exit", out.ExitCode),
		logx.Duration("took", took),
	)
	return out, nil
}

// lossyString replaces invalid UTF-8 sequences instead of carrying
// them into parsers. Control-plane output is usually clean ASCII, but
// unit descriptions and stderr can contain arbitrary bytes.
func lossyString(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// Key renders a program plus argument vector the way ScriptedRunner
// indexes its response table.
func Key(prog string, args []string) string {
	if len(args) == 0 {
		return prog
	}
	return prog + " " + strings.Join(args, " ")
}
