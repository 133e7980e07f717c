package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"flexone/internal/api"
	"flexone/internal/ipc"
	"flexone/internal/preflight"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check backend, control socket, and LLM API health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			checks := []preflight.Result{
				preflight.CheckBackendHealth(cmd.Context(), cfg.BackendURL()),
				checkServiceBanner(cmd.Context(), cfg.BackendURL()),
				checkControlSocket(ctx),
			}
			checks = append(checks, preflight.RunAll(cmd.Context(), cfg)...)

			failed := 0
			for _, check := range checks {
				if !check.Passed {
					failed++
				}
				fmt.Fprintln(stdout, renderStatusLine(check.Name, statusKindFromResult(check.Passed), check.Detail, colorize))
			}
			if failed > 0 {
				return fmt.Errorf("%d health check(s) failed", failed)
			}
			return nil
		},
	}
}

func checkServiceBanner(ctx context.Context, backendURL string) preflight.Result {
	const name = "Service banner"

	client := api.NewClient(backendURL, api.WithTimeout(5*time.Second))
	banner, err := client.Banner(ctx)
	if err != nil {
		return preflight.Result{Name: name, Detail: err.Error()}
	}
	return preflight.Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (%d endpoints)", banner.Service, len(banner.Endpoints)),
	}
}

func checkControlSocket(ctx *commandContext) preflight.Result {
	const name = "Control socket"

	err := ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.Ping()
		if err != nil {
			return err
		}
		if resp == nil || !resp.Pong {
			return fmt.Errorf("backend did not answer ping")
		}
		return nil
	})
	if err != nil {
		return preflight.Result{Name: name, Detail: err.Error()}
	}
	return preflight.Result{Name: name, Passed: true, Detail: ctx.socketPath()}
}
