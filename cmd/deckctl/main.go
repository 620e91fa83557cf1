// deckctl operates systemd services and timers from the terminal,
// talking to systemctl and journalctl directly. It shares the daemon's
// config file so paths and storage point at the same state.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"unitdeck/internal/command"
	"unitdeck/internal/config"
	"unitdeck/internal/journal"
	"unitdeck/internal/storage"
	"unitdeck/internal/systemctl"
	"unitdeck/internal/timerlog"
	"unitdeck/internal/watchlist"
	"unitdeck/pkg/logx"
)

var (
	flagConfigPath string
	flagVerbose    bool

	cfg      *config.Config
	store    storage.Store
	services *systemctl.ServiceClient
	timers   *systemctl.TimerClient
	history  *journal.Client
	watch    *watchlist.Manager
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "./config.yaml", "daemon config file; defaults apply when absent")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	rootCmd.SilenceErrors = true
	rootCmd.PersistentPreRunE = initClients
	rootCmd.PersistentPostRun = func(*cobra.Command, []string) {
		if store != nil {
			_ = store.Close()
		}
	}

	servicesCmd.AddCommand(servicesListCmd, servicesStatusCmd, servicesStartCmd, servicesStopCmd, servicesRestartCmd, servicesLogsCmd)
	timersCmd.AddCommand(timersListCmd, timersAvailableCmd, timersInfoCmd, timersRunCmd, timersEnableCmd, timersDisableCmd)
	rootCmd.AddCommand(servicesCmd, timersCmd, historyCmd, versionCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "deckctl",
	Short:        "Operate systemd services and timers from the terminal",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("deckctl: build info not available")
			return
		}
		fmt.Printf("deckctl: %s\n", info.Main.Version)
		fmt.Printf("go:      %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:  %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:    %s\n", s.Value)
			}
		}
	},
}

func initClients(cmd *cobra.Command, _ []string) error {
	cfg = config.Default()
	if _, err := os.Stat(flagConfigPath); err == nil {
		loaded, err := config.NewConfigManager(flagConfigPath).Load()
		if err != nil {
			return fmt.Errorf("loading %s: %w", flagConfigPath, err)
		}
		cfg = loaded
	}

	log := logx.Nop()
	if flagVerbose {
		log = logx.NewConsole("debug")
	}

	var scfg storage.Config
	if cfg.Storage != nil {
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
		if err != nil {
			return err
		}
		scfg = storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}
	}
	var err error
	store, err = storage.Open(scfg, log)
	if err != nil {
		return err
	}

	timeout, err := config.ParseDurationOrDefault("systemd.command_timeout", cfg.Systemd.CommandTimeout, command.DefaultTimeout)
	if err != nil {
		return err
	}
	runner := command.NewSystemRunner(timeout, log)

	ccfg := systemctl.Config{SystemctlPath: cfg.Systemd.SystemctlPath, JournalctlPath: cfg.Systemd.JournalctlPath}
	services = systemctl.NewServiceClient(runner, ccfg, log)
	timers = systemctl.NewTimerClient(runner, ccfg, log)

	runlogs := timerlog.NewReader(timerlog.Config{BaseDir: cfg.History.RunLogDir, TailDir: cfg.History.TailLogDir}, log)
	history = journal.NewClient(runner, journal.Config{JournalctlPath: cfg.Systemd.JournalctlPath}, runlogs, log)

	watch = watchlist.NewManager(store, services, timers, history, log)
	return nil
}

// actionCmd builds a one-unit mutation subcommand that reports what it
// did in past tense, e.g. "nginx.service started".
func actionCmd(verb, short, done string, do func(ctx context.Context, name string) error) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <unit>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := do(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println(args[0] + " " + done)
			return nil
		},
	}
}

func newTab() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
