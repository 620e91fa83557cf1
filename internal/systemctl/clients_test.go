package systemctl_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"unitdeck/internal/command"
	"unitdeck/internal/systemctl"
	"unitdeck/internal/unit"
	"unitdeck/pkg/logx"
)

var (
	listUnitsArgs  = []string{"list-units", "--type=service", "--all", "--no-pager", "--plain", "--no-legend"}
	listTimersArgs = []string{"list-timers", "--all", "--no-pager", "--plain"}
)

func statusArgs(name string) []string {
	return []string{"show", name, "--property=ActiveState,SubState,MainPID,ActiveEnterTimestamp"}
}

func timerShowArgs(name string) []string {
	return []string{"show", name, "--property=Id,LoadState,UnitFileState,ActiveState,NextElapseUSecRealtime,LastTriggerUSec,TimersCalendar"}
}

func TestServiceClientList(t *testing.T) {
	t.Parallel()

	runner := command.NewScriptedRunner()
	runner.Script("systemctl", listUnitsArgs, command.Output{Stdout: `nginx.service loaded active running NGINX HTTP Server
cron.service loaded active running Regular background jobs
truncated row
sshd.service loaded inactive dead OpenSSH server daemon`})

	client := systemctl.NewServiceClient(runner, systemctl.Config{}, logx.Nop())
	units, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, units, 3)
	require.Equal(t, "nginx.service", units[0].Name)
	require.Equal(t, "sshd.service", units[2].Name)
}

func TestServiceClientListFailure(t *testing.T) {
	t.Parallel()

	runner := command.NewScriptedRunner()
	runner.Script("systemctl", listUnitsArgs, command.Output{ExitCode: 1, Stderr: "Failed to list units"})

	client := systemctl.NewServiceClient(runner, systemctl.Config{}, logx.Nop())
	_, err := client.List(context.Background())
	require.Error(t, err)

	var uerr *unit.Error
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, unit.KindCommandFailed, uerr.Kind)
	require.Equal(t, 1, uerr.ExitCode)
	require.Equal(t, "Failed to list units", uerr.Stderr)
}

func TestServiceClientStatus(t *testing.T) {
	t.Parallel()

	enter := time.Now().Add(-5 * time.Second).UnixMicro()
	runner := command.NewScriptedRunner()
	runner.Script("systemctl", statusArgs("nginx.service"), command.Output{
		Stdout: fmt.Sprintf("ActiveState=active\nSubState=running\nMainPID=1234\nActiveEnterTimestamp=%d", enter),
	})

	client := systemctl.NewServiceClient(runner, systemctl.Config{}, logx.Nop())
	st, err := client.Status(context.Background(), "nginx.service")
	require.NoError(t, err)
	require.Equal(t, "active", st.ActiveState)
	require.Equal(t, "running", st.SubState)
	require.Equal(t, 1234, st.MainPID)
	require.InDelta(t, 5, st.UptimeSeconds, 2)
}

func TestServiceClientActionExitMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		exitCode int
		check    func(t *testing.T, err error)
	}{
		{
			name:     "exit 4 is permission denied",
			exitCode: 4,
			check: func(t *testing.T, err error) {
				require.True(t, unit.IsPermissionDenied(err))
			},
		},
		{
			name:     "exit 5 is not found",
			exitCode: 5,
			check: func(t *testing.T, err error) {
				require.True(t, unit.IsNotFound(err))
			},
		},
		{
			name:     "other exits are command failures",
			exitCode: 1,
			check: func(t *testing.T, err error) {
				var uerr *unit.Error
				require.ErrorAs(t, err, &uerr)
				require.Equal(t, unit.KindCommandFailed, uerr.Kind)
				require.Equal(t, 1, uerr.ExitCode)
				require.Equal(t, "Job failed", uerr.Stderr)
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := command.NewScriptedRunner()
			runner.Script("systemctl", []string{"restart", "app.service"},
				command.Output{ExitCode: tt.exitCode, Stderr: "Job failed\n"})

			client := systemctl.NewServiceClient(runner, systemctl.Config{}, logx.Nop())
			err := client.Restart(context.Background(), "app.service")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestServiceClientPropagatesRunnerErrors(t *testing.T) {
	t.Parallel()

	runner := command.NewScriptedRunner()
	runner.ScriptError("systemctl", []string{"start", "slow.service"},
		&unit.Error{Kind: unit.KindTimeout, Op: "systemctl start", Unit: "slow.service"})

	client := systemctl.NewServiceClient(runner, systemctl.Config{}, logx.Nop())
	err := client.Start(context.Background(), "slow.service")
	require.True(t, unit.IsTimeout(err))
}

func TestServiceClientRejectsHostileNames(t *testing.T) {
	t.Parallel()

	names := []string{
		"nginx; rm -rf /",
		"nginx|cat",
		"nginx`id`",
		"nginx$(id)",
		"nginx&",
		"nginx service",
		"../etc/passwd",
		"",
	}
	for _, name := range names {
		name := name
		t.Run(fmt.Sprintf("%q", name), func(t *testing.T) {
			t.Parallel()

			runner := command.NewScriptedRunner()
			client := systemctl.NewServiceClient(runner, systemctl.Config{}, logx.Nop())
			ctx := context.Background()

			_, err := client.Status(ctx, name)
			require.True(t, unit.IsInvalidIdentifier(err))
			require.True(t, unit.IsInvalidIdentifier(client.Start(ctx, name)))
			_, err = client.Logs(ctx, name, 10)
			require.True(t, unit.IsInvalidIdentifier(err))

			// Nothing may be spawned for a rejected name.
			require.Empty(t, runner.Calls())
		})
	}
}

func TestServiceClientLogs(t *testing.T) {
	t.Parallel()

	logsArgs := func(name, lines string) []string {
		return []string{"-u", name, "-n", lines, "--no-pager", "--output=json"}
	}

	t.Run("parses entries", func(t *testing.T) {
		t.Parallel()

		runner := command.NewScriptedRunner()
		runner.Script("journalctl", logsArgs("nginx.service", "2"), command.Output{
			Stdout: `{"MESSAGE":"Started NGINX","PRIORITY":"6","__REALTIME_TIMESTAMP":"1705314645000000"}
{"MESSAGE":"Reloading","PRIORITY":"5","__REALTIME_TIMESTAMP":"1705314700000000"}`,
		})

		client := systemctl.NewServiceClient(runner, systemctl.Config{}, logx.Nop())
		entries, err := client.Logs(context.Background(), "nginx.service", 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		require.Equal(t, "Started NGINX", entries[0].Message)
		require.Equal(t, 6, entries[0].Priority)
		require.True(t, entries[0].Timestamp.Equal(time.UnixMicro(1705314645000000).UTC()))
		require.Equal(t, 5, entries[1].Priority)
	})

	t.Run("defaults line count", func(t *testing.T) {
		t.Parallel()

		runner := command.NewScriptedRunner()
		runner.Script("journalctl", logsArgs("nginx.service", "50"), command.Output{})

		client := systemctl.NewServiceClient(runner, systemctl.Config{}, logx.Nop())
		entries, err := client.Logs(context.Background(), "nginx.service", 0)
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("empty journal is not an error", func(t *testing.T) {
		t.Parallel()

		runner := command.NewScriptedRunner()
		runner.Script("journalctl", logsArgs("fresh.service", "10"), command.Output{
			ExitCode: 1,
			Stderr:   "-- No entries --",
		})

		client := systemctl.NewServiceClient(runner, systemctl.Config{}, logx.Nop())
		entries, err := client.Logs(context.Background(), "fresh.service", 10)
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("unknown unit is not found", func(t *testing.T) {
		t.Parallel()

		runner := command.NewScriptedRunner()
		runner.Script("journalctl", logsArgs("ghost.service", "10"), command.Output{
			ExitCode: 1,
			Stderr:   "Unit ghost.service not found.",
		})

		client := systemctl.NewServiceClient(runner, systemctl.Config{}, logx.Nop())
		_, err := client.Logs(context.Background(), "ghost.service", 10)
		require.True(t, unit.IsNotFound(err))
	})

	t.Run("invalid json fails the parse", func(t *testing.T) {
		t.Parallel()

		runner := command.NewScriptedRunner()
		runner.Script("journalctl", logsArgs("nginx.service", "10"), command.Output{
			Stdout: "not json at all",
		})

		client := systemctl.NewServiceClient(runner, systemctl.Config{}, logx.Nop())
		_, err := client.Logs(context.Background(), "nginx.service", 10)
		require.Error(t, err)
		require.Equal(t, unit.KindParse, unit.ErrKind(err))
	})
}

func TestTimerClientList(t *testing.T) {
	t.Parallel()

	runner := command.NewScriptedRunner()
	runner.Script("systemctl", listTimersArgs, command.Output{Stdout: `NEXT LEFT LAST PASSED UNIT ACTIVATES
Tue 2026-08-25 03:00:00 UTC 5h Mon backup.timer backup.service
Wed 2026-08-26 00:00:00 UTC 1d Tue logrotate.timer logrotate.service`})

	client := systemctl.NewTimerClient(runner, systemctl.Config{}, logx.Nop())
	timers, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, timers, 2)
	require.Equal(t, "backup.timer", timers[0].Unit)
	require.Equal(t, "backup.service", timers[0].Activates)
	require.Equal(t, "logrotate.timer", timers[1].Unit)
	require.Equal(t, "logrotate.service", timers[1].Activates)
}

func TestTimerClientInfo(t *testing.T) {
	t.Parallel()

	t.Run("resolves descriptor", func(t *testing.T) {
		t.Parallel()

		runner := command.NewScriptedRunner()
		runner.Script("systemctl", timerShowArgs("backup.timer"), command.Output{
			Stdout: `Id=backup.timer
LoadState=loaded
UnitFileState=enabled
ActiveState=active
NextElapseUSecRealtime=Tue 2026-08-25 03:00:00 UTC
LastTriggerUSec=Mon 2026-08-24 03:00:00 UTC
TimersCalendar={ OnCalendar=daily ; next_elapse=Tue 2026-08-25 00:00:00 UTC }`,
		})

		client := systemctl.NewTimerClient(runner, systemctl.Config{}, logx.Nop())
		info, err := client.Info(context.Background(), "backup.timer")
		require.NoError(t, err)
		require.Equal(t, "backup.timer", info.Name)
		require.True(t, info.Enabled)
		require.Equal(t, "daily", info.Schedule)
		require.Equal(t, "Daily at midnight", info.ScheduleHuman)
		require.Equal(t, "backup.service", info.Service)
	})

	t.Run("missing timer", func(t *testing.T) {
		t.Parallel()

		runner := command.NewScriptedRunner()
		runner.Script("systemctl", timerShowArgs("ghost.timer"), command.Output{
			Stdout: "Id=ghost.timer\nLoadState=not-found\nActiveState=inactive",
		})

		client := systemctl.NewTimerClient(runner, systemctl.Config{}, logx.Nop())
		_, err := client.Info(context.Background(), "ghost.timer")
		require.True(t, unit.IsNotFound(err))
	})
}

func TestTimerClientRun(t *testing.T) {
	t.Parallel()

	t.Run("starts the activated service", func(t *testing.T) {
		t.Parallel()

		runner := command.NewScriptedRunner()
		runner.Script("systemctl", []string{"start", "--no-block", "backup.service"}, command.Output{})

		client := systemctl.NewTimerClient(runner, systemctl.Config{}, logx.Nop())
		require.NoError(t, client.Run(context.Background(), "backup.timer"))
		require.Equal(t, []string{"systemctl start --no-block backup.service"}, runner.Calls())
	})

	t.Run("rejects service names", func(t *testing.T) {
		t.Parallel()

		runner := command.NewScriptedRunner()
		client := systemctl.NewTimerClient(runner, systemctl.Config{}, logx.Nop())
		err := client.Run(context.Background(), "backup.service")
		require.True(t, unit.IsInvalidIdentifier(err))
		require.Empty(t, runner.Calls())
	})
}

func TestTimerClientEnable(t *testing.T) {
	t.Parallel()

	t.Run("enables then starts", func(t *testing.T) {
		t.Parallel()

		runner := command.NewScriptedRunner()
		runner.Script("systemctl", []string{"enable", "backup.timer"}, command.Output{})
		runner.Script("systemctl", []string{"start", "backup.timer"}, command.Output{})

		client := systemctl.NewTimerClient(runner, systemctl.Config{}, logx.Nop())
		require.NoError(t, client.Enable(context.Background(), "backup.timer"))
		require.Equal(t, []string{
			"systemctl enable backup.timer",
			"systemctl start backup.timer",
		}, runner.Calls())
	})

	t.Run("aborts when the first step fails", func(t *testing.T) {
		t.Parallel()

		runner := command.NewScriptedRunner()
		runner.Script("systemctl", []string{"enable", "backup.timer"},
			command.Output{ExitCode: 4, Stderr: "Access denied"})

		client := systemctl.NewTimerClient(runner, systemctl.Config{}, logx.Nop())
		err := client.Enable(context.Background(), "backup.timer")
		require.True(t, unit.IsPermissionDenied(err))
		require.Equal(t, []string{"systemctl enable backup.timer"}, runner.Calls())
	})
}

func TestTimerClientDisable(t *testing.T) {
	t.Parallel()

	t.Run("stops then disables", func(t *testing.T) {
		t.Parallel()

		runner := command.NewScriptedRunner()
		runner.Script("systemctl", []string{"stop", "backup.timer"}, command.Output{})
		runner.Script("systemctl", []string{"disable", "backup.timer"}, command.Output{})

		client := systemctl.NewTimerClient(runner, systemctl.Config{}, logx.Nop())
		require.NoError(t, client.Disable(context.Background(), "backup.timer"))
		require.Equal(t, []string{
			"systemctl stop backup.timer",
			"systemctl disable backup.timer",
		}, runner.Calls())
	})

	t.Run("aborts when stop fails", func(t *testing.T) {
		t.Parallel()

		runner := command.NewScriptedRunner()
		runner.Script("systemctl", []string{"stop", "backup.timer"},
			command.Output{ExitCode: 5, Stderr: "Unit backup.timer not loaded."})

		client := systemctl.NewTimerClient(runner, systemctl.Config{}, logx.Nop())
		err := client.Disable(context.Background(), "backup.timer")
		require.True(t, unit.IsNotFound(err))
		require.Equal(t, []string{"systemctl stop backup.timer"}, runner.Calls())
	})
}
