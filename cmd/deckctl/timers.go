package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"unitdeck/internal/journal"
	"unitdeck/internal/unit"
)

var flagHistoryLimit int

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", journal.DefaultHistoryLimit, "how many executions to show")
}

var timersCmd = &cobra.Command{
	Use:   "timers",
	Short: "List and control timer units",
}

var timersListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the watched timers with schedule and last result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := watch.TimerStatuses(cmd.Context())
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("no watched timers; save a watch list through the daemon API first")
			return nil
		}
		w := newTab()
		fmt.Fprintln(w, "TIMER\tENABLED\tSCHEDULE\tNEXT RUN\tLAST RUN\tLAST RESULT")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\t%s\n",
				r.Name, r.Enabled, orDash(r.Schedule), orDash(r.NextRun), orDash(r.LastRun), orDash(r.LastResult))
		}
		return w.Flush()
	},
}

var timersAvailableCmd = &cobra.Command{
	Use:   "available",
	Short: "List every timer the system knows about",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := timers.List(cmd.Context())
		if err != nil {
			return err
		}
		w := newTab()
		fmt.Fprintln(w, "TIMER\tACTIVATES\tNEXT RUN\tLAST RUN")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Unit, orDash(r.Activates), orDash(r.NextRun), orDash(r.LastTrigger))
		}
		return w.Flush()
	},
}

var timersInfoCmd = &cobra.Command{
	Use:   "info <timer>",
	Short: "Show one timer's schedule and service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := timers.Info(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Timer:     %s\n", info.Name)
		fmt.Printf("Service:   %s\n", info.Service)
		fmt.Printf("Enabled:   %t\n", info.Enabled)
		fmt.Printf("Schedule:  %s\n", orDash(info.Schedule))
		if info.ScheduleHuman != "" && info.ScheduleHuman != info.Schedule {
			fmt.Printf("Runs:      %s\n", info.ScheduleHuman)
		}
		fmt.Printf("Next run:  %s\n", orDash(info.NextRun))
		fmt.Printf("Last run:  %s\n", orDash(info.LastTrigger))
		return nil
	},
}

var timersRunCmd = actionCmd("run", "Trigger a timer's service now", "triggered",
	func(ctx context.Context, name string) error { return timers.Run(ctx, name) })

var timersEnableCmd = actionCmd("enable", "Enable and start a timer", "enabled",
	func(ctx context.Context, name string) error { return timers.Enable(ctx, name) })

var timersDisableCmd = actionCmd("disable", "Stop and disable a timer", "disabled",
	func(ctx context.Context, name string) error { return timers.Disable(ctx, name) })

var historyCmd = &cobra.Command{
	Use:   "history <timer>",
	Short: "Show recent executions of a timer's service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := unit.ServiceFor(args[0])
		if err != nil {
			return err
		}
		records, err := history.History(cmd.Context(), service, flagHistoryLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no recorded executions")
			return nil
		}
		w := newTab()
		fmt.Fprintln(w, "START\tSTATUS\tDURATION\tEXIT\tTRIGGER\tINVOCATION")
		for _, r := range records {
			dur := "-"
			if r.DurationSeconds != nil {
				dur = (time.Duration(*r.DurationSeconds) * time.Second).String()
			}
			exit := "-"
			if r.ExitCode != nil {
				exit = strconv.Itoa(*r.ExitCode)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.StartTime, r.Status, dur, exit, r.Trigger, r.InvocationID)
		}
		return w.Flush()
	},
}
