package systemctl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"unitdeck/internal/unit"
)

func TestParseUnitList(t *testing.T) {
	t.Parallel()

	out := `nginx.service                  loaded active   running NGINX HTTP Server
postgresql.service             loaded active   running PostgreSQL Database
broken-row
inactive.service               loaded inactive dead    Inactive Service`

	units := parseUnitList(out)
	require.Len(t, units, 3)

	require.Equal(t, "nginx.service", units[0].Name)
	require.Equal(t, "loaded", units[0].LoadState)
	require.Equal(t, "active", units[0].ActiveState)
	require.Equal(t, "running", units[0].SubState)
	require.Equal(t, "NGINX HTTP Server", units[0].Description)

	require.Equal(t, "inactive.service", units[2].Name)
	require.Equal(t, "dead", units[2].SubState)
}

func TestParseUnitListEmpty(t *testing.T) {
	t.Parallel()
	require.Empty(t, parseUnitList(""))
}

func TestParseUnitStatus(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	t.Run("running", func(t *testing.T) {
		t.Parallel()
		out := "ActiveState=active\nSubState=running\nMainPID=1234\nActiveEnterTimestamp=1705314645000000"
		st, err := parseUnitStatus("nginx.service", out, now)
		require.NoError(t, err)
		require.Equal(t, "nginx.service", st.Name)
		require.Equal(t, "active", st.ActiveState)
		require.Equal(t, "running", st.SubState)
		require.Equal(t, 1234, st.MainPID)
		// 2024-01-15 10:30:45 UTC entered, queried at noon.
		require.Equal(t, int64(5355), st.UptimeSeconds)
	})

	t.Run("stopped", func(t *testing.T) {
		t.Parallel()
		out := "ActiveState=inactive\nSubState=dead\nMainPID=0\nActiveEnterTimestamp="
		st, err := parseUnitStatus("cron.service", out, now)
		require.NoError(t, err)
		require.Equal(t, "inactive", st.ActiveState)
		require.Zero(t, st.MainPID)
		require.Nil(t, st.ActiveEnter)
		require.Zero(t, st.UptimeSeconds)
	})

	t.Run("textual timestamp", func(t *testing.T) {
		t.Parallel()
		out := "ActiveState=active\nSubState=running\nActiveEnterTimestamp=Mon 2024-01-15 10:30:45 UTC"
		st, err := parseUnitStatus("nginx.service", out, now)
		require.NoError(t, err)
		require.NotNil(t, st.ActiveEnter)
		require.Equal(t, int64(5355), st.UptimeSeconds)
	})

	t.Run("future enter clamps to zero", func(t *testing.T) {
		t.Parallel()
		out := "ActiveState=active\nSubState=running\nActiveEnterTimestamp=1705321845000000"
		st, err := parseUnitStatus("nginx.service", out, now)
		require.NoError(t, err)
		require.Zero(t, st.UptimeSeconds)
	})

	t.Run("garbage timestamp is absent", func(t *testing.T) {
		t.Parallel()
		out := "ActiveState=active\nSubState=running\nActiveEnterTimestamp=whenever"
		st, err := parseUnitStatus("nginx.service", out, now)
		require.NoError(t, err)
		require.Nil(t, st.ActiveEnter)
		require.Zero(t, st.UptimeSeconds)
	})

	t.Run("missing SubState fails", func(t *testing.T) {
		t.Parallel()
		_, err := parseUnitStatus("nginx.service", "ActiveState=active", now)
		require.Error(t, err)
		require.Equal(t, unit.KindParse, unit.ErrKind(err))
	})

	t.Run("missing ActiveState fails", func(t *testing.T) {
		t.Parallel()
		_, err := parseUnitStatus("nginx.service", "SubState=running", now)
		require.Error(t, err)
		require.Equal(t, unit.KindParse, unit.ErrKind(err))
	})
}

func TestParseTimerList(t *testing.T) {
	t.Parallel()

	out := `NEXT                          LEFT     LAST PASSED UNIT ACTIVATES
------------------------------------------------------------------
Mon 2026-08-31 03:00:00 UTC 5d ago backup.timer backup.service
n/a n/a n/a n/a n/a n/a cleanup.timer cleanup.service
short row here

2 timers listed.`

	timers := parseTimerList(out)
	require.Len(t, timers, 2)

	require.Equal(t, "backup.timer", timers[0].Unit)
	require.Equal(t, "backup.service", timers[0].Activates)
	require.Equal(t, "Mon 2026-08-31 03:00:00 UTC 5d", timers[0].NextRun)
	require.Equal(t, "ago", timers[0].LastTrigger)

	require.Equal(t, "cleanup.timer", timers[1].Unit)
	require.Equal(t, "cleanup.service", timers[1].Activates)
	require.Empty(t, timers[1].NextRun)
	require.Empty(t, timers[1].LastTrigger)
}

func TestParseTimerInfo(t *testing.T) {
	t.Parallel()

	t.Run("enabled with calendar", func(t *testing.T) {
		t.Parallel()
		out := `Id=backup.timer
LoadState=loaded
UnitFileState=enabled
ActiveState=active
NextElapseUSecRealtime=Tue 2026-08-25 03:00:00 UTC
LastTriggerUSec=Mon 2026-08-24 03:00:00 UTC
TimersCalendar={ OnCalendar=Mon-Fri 08-21:00 ; next_elapse=Tue 2026-08-25 08:00:00 UTC }`

		info, err := parseTimerInfo("backup.timer", out)
		require.NoError(t, err)
		require.Equal(t, "backup.timer", info.Name)
		require.True(t, info.Enabled)
		require.Equal(t, "Mon-Fri 08-21:00", info.Schedule)
		require.Equal(t, "Mon-Fri, 8 AM - 9 PM", info.ScheduleHuman)
		require.Equal(t, "Tue 2026-08-25 03:00:00 UTC", info.NextRun)
		require.Equal(t, "Mon 2026-08-24 03:00:00 UTC", info.LastTrigger)
		require.Equal(t, "backup.service", info.Service)
	})

	t.Run("enabled requires active", func(t *testing.T) {
		t.Parallel()
		out := "Id=backup.timer\nLoadState=loaded\nUnitFileState=enabled\nActiveState=inactive\nNextElapseUSecRealtime=0\nLastTriggerUSec="
		info, err := parseTimerInfo("backup.timer", out)
		require.NoError(t, err)
		require.False(t, info.Enabled)
		require.Empty(t, info.NextRun)
		require.Empty(t, info.LastTrigger)
		require.Empty(t, info.Schedule)
		require.Equal(t, "Schedule not available", info.ScheduleHuman)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		_, err := parseTimerInfo("ghost.timer", "Id=ghost.timer\nLoadState=not-found\nActiveState=inactive")
		require.Error(t, err)
		require.True(t, unit.IsNotFound(err))
	})
}

func TestExtractOnCalendar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		want  string
		ok    bool
	}{
		{name: "semicolon delimited", value: "{ OnCalendar=daily ; next_elapse=n/a }", want: "daily", ok: true},
		{name: "brace delimited", value: "{ OnCalendar=*-*-* 04:00:00 }", want: "*-*-* 04:00:00", ok: true},
		{name: "no delimiter", value: "OnCalendar=weekly", want: "weekly", ok: true},
		{name: "missing prefix", value: "{ next_elapse=n/a }", ok: false},
		{name: "empty expression", value: "{ OnCalendar= ; }", ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := extractOnCalendar(tt.value)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
