package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"flexone/internal/launcher"
	"flexone/internal/preflight"
	"flexone/internal/runstore"
)

const stopGracePeriod = 5 * time.Second

func newBackendCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the backend as a detached process",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := backendExecutable()
			if err != nil {
				return err
			}

			result, err := launcher.EnsureStarted(cmd.Context(), cfg, exe, backendLaunchOptions(ctx, startLogLevel))
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Backend not running, launching...")
			}
			switch result.State {
			case launcher.StartStateStarted:
				fmt.Fprintln(stdout, "Backend started")
			case launcher.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Backend already running")
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Log level for the launched backend")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the backend (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := launcher.StopAndTerminate(ctx.socketPath(), ctx.configValue(), stopGracePeriod)
			if errors.Is(err, launcher.ErrBackendNotRunning) {
				fmt.Fprintln(stdout, "Backend is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping backend...")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping backend process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Backend stopped")
			return nil
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := backendExecutable()
			if err != nil {
				return err
			}

			result, err := launcher.Restart(cmd.Context(), cfg, exe, backendLaunchOptions(ctx, restartLogLevel), stopGracePeriod)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping backend process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Backend stopped")
			}
			fmt.Fprintln(stdout, "Backend restarted")
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Log level for the relaunched backend")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show backend status, preflight checks, and recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snapshot, err := launcher.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd.OutOrStdout(), snapshot)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Backend", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if snapshot.Running {
				fmt.Fprintln(stdout, renderStatusLine("Backend", statusOK, fmt.Sprintf("running (pid %d)", snapshot.PID), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Run ID", statusInfo, snapshot.RunID, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Uptime", statusInfo, formatUptime(snapshot.UptimeSeconds), colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Backend", statusError, "not running (start it with `flexone start`)", colorize))
			}
			fmt.Fprintln(stdout, renderStatusLine("Backend URL", statusInfo, snapshot.BackendURL, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Bind", statusInfo, snapshot.Bind, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Model", statusInfo, snapshot.Model, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Socket", statusInfo, snapshot.SocketPath, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Runs DB", statusInfo, snapshot.RunsDBPath, colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(stdout, line)
			}
			checks := []preflight.Result{preflight.CheckBackendHealth(cmd.Context(), snapshot.BackendURL)}
			checks = append(checks, preflight.RunAll(cmd.Context(), cfg)...)
			for _, check := range checks {
				fmt.Fprintln(stdout, renderStatusLine(check.Name, statusKindFromResult(check.Passed), check.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Recent Runs", colorize) {
				fmt.Fprintln(stdout, line)
			}
			runs, err := runstore.Open(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()
			recent, err := runs.Recent(cmd.Context(), 5)
			if err != nil {
				return err
			}
			rows := buildRunRows(recent)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No runs recorded")
				return nil
			}
			fmt.Fprintln(stdout, renderTable(runTableHeaders, rows, runTablePIDColumn))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit machine-readable status JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}
