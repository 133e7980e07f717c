package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"flexone/internal/api"
	"flexone/internal/frontend"
	"flexone/internal/launcher"
	"flexone/internal/preflight"
)

func newUpCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start the backend if needed, then open the chat frontend",
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

			result, err := launcher.EnsureStarted(cmd.Context(), cfg, exe, backendLaunchOptions(ctx, logLevel))
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

			return frontend.Run(api.NewClient(cfg.BackendURL()))
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level for the launched backend")
	return cmd
}

func newFrontendCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "frontend",
		Short: "Open the chat frontend against a running backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			check := preflight.CheckBackendHealth(cmd.Context(), cfg.BackendURL())
			if !check.Passed {
				return fmt.Errorf("backend is not ready (%s); start it with `flexone up` or `flexone start`", check.Detail)
			}

			return frontend.Run(api.NewClient(cfg.BackendURL()))
		},
	}
}
