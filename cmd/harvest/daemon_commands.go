package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"harvest/internal/daemon"
	"harvest/internal/daemonctl"
	"harvest/internal/daemonrun"
	"harvest/internal/logs"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run or control the background finalization daemon",
	}
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	daemonCmd.AddCommand(newDaemonScanCommand(ctx))
	daemonCmd.AddCommand(newDaemonLogsCommand(ctx))
	return daemonCmd
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Launch the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonctl.New(ctx.configValue())
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if status, err := client.Status(cmd.Context()); err == nil && status.Running {
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", status.PID)
				return nil
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			fmt.Fprintln(stdout, "Daemon not running, launching...")
			if err := daemonctl.Launch(exe, ctx.configPath); err != nil {
				return err
			}
			status, err := daemonctl.WaitForStatus(cmd.Context(), client, 10*time.Second)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Daemon started (pid %d)\n", status.PID)
			return nil
		},
	}
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			pid, err := daemonctl.Terminate(ctx.configValue().PIDPath(), 10*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Daemon stopped (pid %d)\n", pid)
			return nil
		},
	}
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and the last scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonctl.New(ctx.configValue())
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				if asJSON {
					return writeJSON(cmd, daemon.Status{})
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, status)
			}
			renderDaemonStatus(cmd, status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newDaemonScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Ask the running daemon to scan now",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonctl.New(ctx.configValue())
			if err != nil {
				return err
			}
			summary, err := client.Scan(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d releases, finalized %d\n", summary.Releases, summary.Finalized)
			return nil
		},
	}
}

func newDaemonLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(ctx.configValue().Paths.LogDir, "harvestd.log")
			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			for _, line := range tail {
				fmt.Fprintln(stdout, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 250*time.Millisecond, func(line string) {
				fmt.Fprintln(stdout, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	return cmd
}

func renderDaemonStatus(cmd *cobra.Command, status daemon.Status) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	runningKind := statusWarn
	if status.Running {
		runningKind = statusOK
	}
	fmt.Fprintln(stdout, renderStatusLine("Running", runningKind, yesNo(status.Running), colorize))
	fmt.Fprintln(stdout, renderStatusLine("PID", statusInfo, strconv.Itoa(status.PID), colorize))
	if !status.StartedAt.IsZero() {
		fmt.Fprintln(stdout, renderStatusLine("Started", statusInfo, status.StartedAt.Local().Format(time.RFC3339), colorize))
	}
	fmt.Fprintln(stdout, renderStatusLine("Library DB", statusInfo, status.LibraryDBPath, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Missing releases", statusInfo, strconv.Itoa(status.Missing), colorize))
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Last Scan", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if status.LastScan == nil {
		fmt.Fprintln(stdout, "No scan has completed yet")
		return
	}
	scan := status.LastScan
	fmt.Fprintln(stdout, renderStatusLine("Finished", statusInfo, scan.Finished.Local().Format(time.RFC3339), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Finalized", statusOK, fmt.Sprintf("%d of %d", scan.Finalized, scan.Releases), colorize))
	rows := outcomeRows(scan.Outcomes)
	if len(rows) > 0 {
		fmt.Fprint(stdout, renderTable([]string{"Outcome", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
}

// outcomeRows lists outcomes in the order a scan assigns them.
func outcomeRows(outcomes map[string]int) [][]string {
	order := []string{"copied", "relocated", "already_present", "incomplete", "no_match", "no_files", "cooldown"}
	var rows [][]string
	for _, name := range order {
		if n := outcomes[name]; n > 0 {
			rows = append(rows, []string{name, strconv.Itoa(n)})
		}
	}
	return rows
}
