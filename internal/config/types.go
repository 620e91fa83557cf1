package config

// Config is the daemon's full configuration tree.
//
// YAML and JSON are both accepted (YAML is coerced to JSON before
// decoding). Unknown keys are rejected so a typo surfaces on reload
// instead of silently falling back to a default.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Logging LoggingConfig `json:"logging"`
	Systemd SystemdConfig `json:"systemd"`
	History HistoryConfig `json:"history"`
	Monitor MonitorConfig `json:"monitor"`
	Pprof   PprofConfig   `json:"pprof"`

	// Storage is optional. Nil keeps watch lists and the audit trail
	// in memory only.
	Storage *StorageConfig `json:"storage,omitempty"`
}

// ServerConfig controls the HTTP API listener.
//
// All timeouts are Go duration strings (e.g. "500ms", "10s", "1m").
type ServerConfig struct {
	Addr string `json:"addr"` // default: "127.0.0.1:8484"

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// RatePerSec limits mutating requests (start/stop/restart, timer
	// run/enable/disable, watch-list writes). Use 0 to disable the
	// limiter.
	RatePerSec int `json:"rate_per_sec,omitempty"`
	RateBurst  int `json:"rate_burst,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SystemdConfig points the control-plane clients at their binaries.
// Paths default to bare names resolved via PATH.
type SystemdConfig struct {
	SystemctlPath  string `json:"systemctl_path,omitempty"`
	JournalctlPath string `json:"journalctl_path,omitempty"`

	// CommandTimeout bounds every spawned control-plane command.
	// Go duration string; default "10s".
	CommandTimeout string `json:"command_timeout,omitempty"`
}

// HistoryConfig locates the per-run log files used as a fallback for
// services whose output never reaches the journal.
type HistoryConfig struct {
	RunLogDir  string `json:"run_log_dir,omitempty"`  // default: /var/log/timers
	TailLogDir string `json:"tail_log_dir,omitempty"` // default: /var/log
}

// MonitorConfig controls the state-change poller.
type MonitorConfig struct {
	Enabled bool `json:"enabled"`

	// Poll is the tick schedule: a cron expression ("*/1 * * * *",
	// "@every 30s") or a Go duration ("30s"). Default "30s".
	Poll string `json:"poll,omitempty"`

	AutoRestart AutoRestartConfig `json:"auto_restart"`
}

// AutoRestartConfig restarts a watched service that has stayed failed
// for at least MinDown.
type AutoRestartConfig struct {
	Enabled bool   `json:"enabled"`
	MinDown string `json:"min_down,omitempty"` // Go duration string; default "2m"
}

// PprofConfig controls the optional profiling listener. It binds its
// own address so profiles stay reachable independent of the API
// server; non-loopback binds need allow_remote.
type PprofConfig struct {
	Enabled     bool   `json:"enabled"`
	Addr        string `json:"addr,omitempty"` // default: "127.0.0.1:6060"
	AllowRemote bool   `json:"allow_remote,omitempty"`
}

// StorageConfig selects the persistence driver.
//
// Example:
//
//	"storage": { "driver": "file", "path": "/var/lib/unitdeck/state" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// Default returns the configuration used when fields are omitted.
// Parse decodes the file on top of this value, so a partial config
// only overrides what it names.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "127.0.0.1:8484",
			ReadTimeout:  "10s",
			WriteTimeout: "30s",
			IdleTimeout:  "2m",
			RatePerSec:   5,
			RateBurst:    10,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Systemd: SystemdConfig{
			CommandTimeout: "10s",
		},
		Monitor: MonitorConfig{
			Poll: "30s",
			AutoRestart: AutoRestartConfig{
				MinDown: "2m",
			},
		},
	}
}
