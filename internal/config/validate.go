package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks field syntax. Checks that need another component
// (e.g. whether the monitor can parse the poll spec) are installed as
// a watch validator by the daemon instead.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr required")
	}
	for _, f := range []struct {
		path string
		raw  string
	}{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.idle_timeout", c.Server.IdleTimeout},
		{"systemd.command_timeout", c.Systemd.CommandTimeout},
		{"monitor.auto_restart.min_down", c.Monitor.AutoRestart.MinDown},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if c.Server.RatePerSec < 0 {
		return fmt.Errorf("server.rate_per_sec must be >= 0")
	}
	if c.Server.RateBurst < 0 {
		return fmt.Errorf("server.rate_burst must be >= 0")
	}
	if c.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none", "memory", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}

// ParseDurationField parses an optional duration field. Empty input
// returns 0 with no error; the caller decides the default.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with a fallback for
// empty or zero values.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
