package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"flexone/internal/api"
	"flexone/internal/launcher"
	"flexone/internal/runstore"
)

func backendExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func backendLaunchOptions(ctx *commandContext, logLevel string) launcher.LaunchOptions {
	opts := launcher.LaunchOptions{LogLevel: strings.TrimSpace(logLevel)}
	if ctx.configFlag != nil {
		if cfgPath := strings.TrimSpace(*ctx.configFlag); cfgPath != "" {
			opts.ConfigPath = cfgPath
		}
	}
	return opts
}

func titleCase(value string) string {
	return cases.Title(language.English).String(strings.ToLower(strings.TrimSpace(value)))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatUptime(seconds int64) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds) * time.Second).String()
}

func buildRunRows(runs []*runstore.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		if run == nil {
			continue
		}
		stopped := "-"
		if run.StoppedAt != nil {
			stopped = formatTimestamp(*run.StoppedAt)
		}
		rows = append(rows, []string{
			shortID(run.ID),
			titleCase(run.Process),
			fmt.Sprintf("%d", run.PID),
			string(run.Status),
			formatTimestamp(run.StartedAt),
			stopped,
			run.Detail,
		})
	}
	return rows
}

var runTableHeaders = []string{"Run", "Process", "PID", "Status", "Started", "Stopped", "Detail"}

// runTablePIDColumn is the only numeric column in the run listing.
const runTablePIDColumn = 2

// withBackendHint appends a start hint to transport failures. Responses the
// backend itself produced pass through untouched.
func withBackendHint(err error) error {
	if err == nil {
		return nil
	}
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		return err
	}
	return fmt.Errorf("%w (is the backend running? start it with `flexone start`)", err)
}
