package app

import (
	"strings"
	"time"

	"unitdeck/internal/config"
	"unitdeck/internal/monitor"
	"unitdeck/internal/observability/pprof"
	"unitdeck/internal/server"
	"unitdeck/internal/storage"
	"unitdeck/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// mapStorageConfig resolves the storage section. A missing section or
// an empty driver means the in-memory store; watch lists then live
// only for the process lifetime.
func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg.Storage == nil {
		return storage.Config{Driver: "memory"}, nil
	}
	sc := cfg.Storage
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: busy,
	}, nil
}

func mapServerConfig(cfg *config.Config) (server.Config, error) {
	read, err := config.ParseDurationOrDefault("server.read_timeout", cfg.Server.ReadTimeout, 10*time.Second)
	if err != nil {
		return server.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("server.write_timeout", cfg.Server.WriteTimeout, 30*time.Second)
	if err != nil {
		return server.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("server.idle_timeout", cfg.Server.IdleTimeout, 2*time.Minute)
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
		RatePerSec:   cfg.Server.RatePerSec,
		RateBurst:    cfg.Server.RateBurst,
	}, nil
}

func mapMonitorConfig(cfg *config.Config) (monitor.Config, error) {
	minDown, err := config.ParseDurationOrDefault("monitor.auto_restart.min_down", cfg.Monitor.AutoRestart.MinDown, 2*time.Minute)
	if err != nil {
		return monitor.Config{}, err
	}
	return monitor.Config{
		Poll:        cfg.Monitor.Poll,
		AutoRestart: cfg.Monitor.AutoRestart.Enabled,
		MinDown:     minDown,
	}, nil
}

func mapPprofConfig(cfg *config.Config) pprof.Config {
	return pprof.Config{
		Enabled:     cfg.Pprof.Enabled,
		Addr:        cfg.Pprof.Addr,
		AllowRemote: cfg.Pprof.AllowRemote,
	}
}
