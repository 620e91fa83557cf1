package command_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"unitdeck/internal/command"
	"unitdeck/internal/unit"
	"unitdeck/pkg/logx"
)

func TestSystemRunnerCapturesOutput(t *testing.T) {
	t.Parallel()

	r := command.NewSystemRunner(5*time.Second, logx.Nop())
	out, err := r.Run(context.Background(), "echo", "hello")
	require.NoError(t, err)
	require.Equal(t, 0, out.ExitCode)
	require.Equal(t, "hello\n", out.Stdout)
	require.Empty(t, out.Stderr)
}

func TestSystemRunnerNonZeroExitIsNotAnError(t *testing.T) {
	t.Parallel()

	r := command.NewSystemRunner(5*time.Second, logx.Nop())
	out, err := r.Run(context.Background(), "false")
	require.NoError(t, err)
	require.Equal(t, 1, out.ExitCode)
}

func TestSystemRunnerSpawnFailure(t *testing.T) {
	t.Parallel()

	r := command.NewSystemRunner(5*time.Second, logx.Nop())
	_, err := r.Run(context.Background(), "definitely-not-a-real-binary-4b1d")
	require.Error(t, err)
	require.Equal(t, unit.KindIO, unit.ErrKind(err))
}

func TestSystemRunnerTimeout(t *testing.T) {
	t.Parallel()

	r := command.NewSystemRunner(50*time.Millisecond, logx.Nop())
	start := time.Now()
	_, err := r.Run(context.Background(), "sleep", "5")
	require.Error(t, err)
	require.True(t, unit.IsTimeout(err), "got %v", err)
	require.Less(t, time.Since(start), 3*time.Second)
}

func TestScriptedRunner(t *testing.T) {
	t.Parallel()

	r := command.NewScriptedRunner()
	r.Script("systemctl", []string{"start", "nginx.service"}, command.Output{ExitCode: 0})
	r.Script("systemctl", []string{"start", "broken.service"}, command.Output{
		ExitCode: 1,
		Stderr:   "Job for broken.service failed.",
	})

	out, err := r.Run(context.Background(), "systemctl", "start", "nginx.service")
	require.NoError(t, err)
	require.Equal(t, 0, out.ExitCode)

	out, err = r.Run(context.Background(), "systemctl", "start", "broken.service")
	require.NoError(t, err)
	require.Equal(t, 1, out.ExitCode)
	require.Contains(t, out.Stderr, "failed")

	_, err = r.Run(context.Background(), "systemctl", "stop", "nginx.service")
	require.Error(t, err)
	require.Equal(t, unit.KindInternal, unit.ErrKind(err))

	require.Equal(t, []string{
		"systemctl start nginx.service",
		"systemctl start broken.service",
		"systemctl stop nginx.service",
	}, r.Calls())
}
