// Package launcher orchestrates the backend process lifecycle for the CLI.
//
// It launches `flexone serve` as a detached child, polls the HTTP health
// endpoint until the backend is ready, and stops the process gracefully over
// the control socket with a SIGKILL fallback driven by the pid file. The
// status snapshot helpers fill in configured paths when the backend is
// offline so status output stays complete.
package launcher
