package journal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"unitdeck/internal/command"
	"unitdeck/internal/journal"
	"unitdeck/internal/unit"
)

func TestParseEntries(t *testing.T) {
	t.Parallel()

	t.Run("full entries", func(t *testing.T) {
		t.Parallel()

		out := `{"MESSAGE":"Started NGINX","PRIORITY":"6","__REALTIME_TIMESTAMP":"1705314645000000"}

{"MESSAGE":"Stopping NGINX","PRIORITY":"5","__REALTIME_TIMESTAMP":"1705314700000000"}`

		entries, err := journal.ParseEntries(out)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		require.Equal(t, "Started NGINX", entries[0].Message)
		require.Equal(t, 6, entries[0].Priority)
		require.True(t, entries[0].Timestamp.Equal(time.UnixMicro(1705314645000000).UTC()))
		require.Equal(t, "Stopping NGINX", entries[1].Message)
		require.Equal(t, 5, entries[1].Priority)
	})

	t.Run("missing fields degrade per line", func(t *testing.T) {
		t.Parallel()

		entries, err := journal.ParseEntries(`{"MESSAGE":"no metadata"}`)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, "no metadata", entries[0].Message)
		require.Equal(t, 6, entries[0].Priority)
		require.WithinDuration(t, time.Now(), entries[0].Timestamp, 5*time.Second)
	})

	t.Run("binary message renders empty", func(t *testing.T) {
		t.Parallel()

		entries, err := journal.ParseEntries(`{"MESSAGE":[72,105],"PRIORITY":"4","__REALTIME_TIMESTAMP":"1705314645000000"}`)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Empty(t, entries[0].Message)
		require.Equal(t, 4, entries[0].Priority)
	})

	t.Run("invalid json fails the batch", func(t *testing.T) {
		t.Parallel()

		_, err := journal.ParseEntries(`{"MESSAGE":"good"}` + "\nnot json")
		require.Error(t, err)
		require.Equal(t, unit.KindParse, unit.ErrKind(err))
	})

	t.Run("empty output", func(t *testing.T) {
		t.Parallel()

		entries, err := journal.ParseEntries("")
		require.NoError(t, err)
		require.Empty(t, entries)
	})
}

func TestIsEmpty(t *testing.T) {
	t.Parallel()

	require.True(t, journal.IsEmpty("No journal files were found."))
	require.True(t, journal.IsEmpty("-- No entries --"))
	require.False(t, journal.IsEmpty("Failed to open journal"))
	require.False(t, journal.IsEmpty(""))
}

func TestExitError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stderr string
		want   unit.Kind
	}{
		{name: "missing unit", stderr: "Unit ghost.service not found.", want: unit.KindNotFound},
		{name: "missing journal", stderr: "journal does not exist", want: unit.KindNotFound},
		{name: "other failure", stderr: "Failed to open journal\n", want: unit.KindCommandFailed},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := journal.ExitError("journalctl", "ghost.service", command.Output{ExitCode: 1, Stderr: tt.stderr})
			var uerr *unit.Error
			require.ErrorAs(t, err, &uerr)
			require.Equal(t, tt.want, uerr.Kind)
			require.Equal(t, 1, uerr.ExitCode)
		})
	}
}
