package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"unitdeck/internal/systemctl"
)

var flagLogLines int

func init() {
	servicesLogsCmd.Flags().IntVar(&flagLogLines, "lines", systemctl.DefaultLogLines, "how many journal lines to fetch")
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List and control service units",
}

var servicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every installed service unit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		units, err := services.List(cmd.Context())
		if err != nil {
			return err
		}
		w := newTab()
		fmt.Fprintln(w, "UNIT\tLOAD\tACTIVE\tSUB\tDESCRIPTION")
		for _, u := range units {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.Name, u.LoadState, u.ActiveState, u.SubState, u.Description)
		}
		return w.Flush()
	},
}

var servicesStatusCmd = &cobra.Command{
	Use:   "status <unit>",
	Short: "Show the detailed state of one service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := services.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Unit:    %s\n", st.Name)
		fmt.Printf("Active:  %s (%s)\n", st.ActiveState, st.SubState)
		if st.UptimeSeconds > 0 {
			fmt.Printf("Uptime:  %s\n", time.Duration(st.UptimeSeconds)*time.Second)
		}
		if st.MainPID != 0 {
			fmt.Printf("PID:     %d\n", st.MainPID)
		}
		if st.ActiveEnter != nil {
			fmt.Printf("Since:   %s\n", st.ActiveEnter.Local().Format(time.RFC1123))
		}
		return nil
	},
}

var servicesStartCmd = actionCmd("start", "Start a service", "started",
	func(ctx context.Context, name string) error { return services.Start(ctx, name) })

var servicesStopCmd = actionCmd("stop", "Stop a service", "stopped",
	func(ctx context.Context, name string) error { return services.Stop(ctx, name) })

var servicesRestartCmd = actionCmd("restart", "Restart a service", "restarted",
	func(ctx context.Context, name string) error { return services.Restart(ctx, name) })

var servicesLogsCmd = &cobra.Command{
	Use:   "logs <unit>",
	Short: "Show recent journal entries for a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := services.Logs(cmd.Context(), args[0], flagLogLines)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no journal entries")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %s\n", e.Timestamp.Local().Format("Jan 02 15:04:05"), e.Message)
		}
		return nil
	},
}
