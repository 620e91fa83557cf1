// Package app wires configuration, storage, the systemd clients, the
// monitor and the HTTP server into one runnable daemon.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"golang.org/x/sync/errgroup"

	"unitdeck/internal/command"
	"unitdeck/internal/config"
	"unitdeck/internal/journal"
	"unitdeck/internal/monitor"
	"unitdeck/internal/observability/pprof"
	"unitdeck/internal/server"
	"unitdeck/internal/storage"
	"unitdeck/internal/systemctl"
	"unitdeck/internal/timerlog"
	"unitdeck/internal/watchlist"
	"unitdeck/pkg/logx"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfgm *config.ConfigManager
	logs *logx.Service
	log  logx.Logger

	store    storage.Store
	services *systemctl.ServiceClient
	timers   *systemctl.TimerClient
	history  *journal.Client
	watch    *watchlist.Manager
	mon      *monitor.Service
	srv      *server.Server
	dbg      *pprof.Service
}

// New loads the config at cfgPath and builds every component. Nothing
// runs until Run.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	storeCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storeCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	commandTimeout, err := config.ParseDurationOrDefault("systemd.command_timeout", cfg.Systemd.CommandTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	runner := command.NewSystemRunner(commandTimeout, log.With(logx.String("comp", "command")))

	ctlCfg := systemctl.Config{
		SystemctlPath:  cfg.Systemd.SystemctlPath,
		JournalctlPath: cfg.Systemd.JournalctlPath,
	}
	services := systemctl.NewServiceClient(runner, ctlCfg, log.With(logx.String("comp", "systemctl")))
	timers := systemctl.NewTimerClient(runner, ctlCfg, log.With(logx.String("comp", "systemctl")))

	runlogs := timerlog.NewReader(timerlog.Config{
		BaseDir: cfg.History.RunLogDir,
		TailDir: cfg.History.TailLogDir,
	}, log.With(logx.String("comp", "timerlog")))
	history := journal.NewClient(runner, journal.Config{
		JournalctlPath: cfg.Systemd.JournalctlPath,
	}, runlogs, log.With(logx.String("comp", "journal")))

	watch := watchlist.NewManager(store, services, timers, history, log.With(logx.String("comp", "watchlist")))

	var mon *monitor.Service
	if cfg.Monitor.Enabled {
		monCfg, err := mapMonitorConfig(cfg)
		if err != nil {
			return nil, err
		}
		mon, err = monitor.New(monCfg, monitor.Deps{
			Status:  services,
			Units:   watch,
			Restart: services,
			Audit:   store,
		}, log.With(logx.String("comp", "monitor")))
		if err != nil {
			return nil, err
		}
	}

	srvCfg, err := mapServerConfig(cfg)
	if err != nil {
		return nil, err
	}
	srv := server.New(srvCfg, server.Deps{
		Services: services,
		Timers:   timers,
		History:  history,
		Watch:    watch,
		Audit:    store,
		Log:      log.With(logx.String("comp", "http")),
	})

	var dbg *pprof.Service
	if cfg.Pprof.Enabled {
		dbg, err = pprof.New(mapPprofConfig(cfg), log.With(logx.String("comp", "pprof")))
		if err != nil {
			return nil, err
		}
	}

	return &App{
		cfgm:     cfgm,
		logs:     logSvc,
		log:      log,
		store:    store,
		services: services,
		timers:   timers,
		history:  history,
		watch:    watch,
		mon:      mon,
		srv:      srv,
		dbg:      dbg,
	}, nil
}

// Run serves until ctx is canceled or a component fails, then shuts
// everything down and releases storage and the logger.
func (a *App) Run(ctx context.Context) error {
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if cfg.Monitor.Enabled {
			if err := monitor.ValidateSpec(cfg.Monitor.Poll); err != nil {
				return err
			}
		}
		return nil
	})

	g, ctx := errgroup.WithContext(ctx)

	if a.mon != nil {
		g.Go(func() error { return a.mon.Run(ctx) })
		g.Go(func() error {
			a.srv.Broadcast(a.mon.Events())
			return nil
		})
	}

	// Under Type=socket units systemd hands the daemon its listener;
	// otherwise bind the configured address.
	listeners, lerr := activation.Listeners()
	if lerr != nil {
		a.log.Warn("socket activation probe failed", logx.Err(lerr))
		listeners = nil
	}
	g.Go(func() error {
		if len(listeners) > 0 {
			a.log.Info("serving on socket-activated listener", logx.String("addr", listeners[0].Addr().String()))
			return a.srv.Serve(listeners[0])
		}
		return a.srv.Run()
	})
	if a.dbg != nil {
		g.Go(func() error { return a.dbg.Run() })
	}
	g.Go(func() error {
		<-ctx.Done()
		notifyStopping()
		shctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if a.dbg != nil {
			_ = a.dbg.Shutdown(shctx)
		}
		return a.srv.Shutdown(shctx)
	})

	g.Go(func() error { return a.cfgm.Watch(ctx) })
	g.Go(func() error {
		a.reloadLoop(ctx)
		return nil
	})
	g.Go(func() error {
		watchdogLoop(ctx, a.log)
		return nil
	})

	notifyReady(a.log)

	err := g.Wait()

	if cerr := a.store.Close(); cerr != nil {
		a.log.Warn("storage close failed", logx.Err(cerr))
	}
	a.log.Info("daemon stopped")
	_ = a.logs.Close()
	return err
}

// reloadLoop applies committed config changes to the running
// components. Bursts are coalesced so only the newest config counts.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.applyConfig(last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload produced no effective changes")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config change applied", fields...)

	for _, s := range sections {
		switch s {
		case "server", "systemd", "history", "storage", "pprof":
			a.log.Warn("config section needs a restart to take effect", logx.String("section", s))
		}
	}

	a.logs.Apply(mapLoggingConfig(newCfg))

	if !sectionChanged(sections, "monitor") {
		return
	}
	if a.mon == nil || !newCfg.Monitor.Enabled {
		a.log.Warn("monitor.enabled change needs a restart to take effect")
		return
	}
	monCfg, err := mapMonitorConfig(newCfg)
	if err != nil {
		a.log.Warn("invalid monitor config; keeping previous", logx.Err(err))
		return
	}
	if err := a.mon.Apply(monCfg); err != nil {
		a.log.Warn("monitor config not applied", logx.Err(err))
	}
}

func sectionChanged(sections []string, name string) bool {
	for _, s := range sections {
		if s == name {
			return true
		}
	}
	return false
}
