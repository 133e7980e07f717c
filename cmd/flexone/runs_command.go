package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"flexone/internal/runstore"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show backend process run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := runstore.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			recent, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), recent)
			}

			stdout := cmd.OutOrStdout()
			if len(recent) == 0 {
				fmt.Fprintln(stdout, "No runs recorded")
				return nil
			}

			fmt.Fprintln(stdout, renderTable(runTableHeaders, buildRunRows(recent), runTablePIDColumn))

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, summarizeRunStats(stats))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit run history as JSON")
	return cmd
}

func summarizeRunStats(stats map[runstore.Status]int) string {
	total := 0
	parts := make([]string, 0, len(stats))
	for _, status := range []runstore.Status{
		runstore.StatusLaunched,
		runstore.StatusReady,
		runstore.StatusStopped,
		runstore.StatusFailed,
	} {
		count, ok := stats[status]
		if !ok {
			continue
		}
		total += count
		parts = append(parts, fmt.Sprintf("%d %s", count, status))
	}
	if total == 0 {
		return "No runs recorded"
	}
	return fmt.Sprintf("%d run(s): %s", total, strings.Join(parts, ", "))
}
