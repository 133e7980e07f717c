// Package main hosts the FlexOne CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into backend
// HTTP calls, control-socket IPC, run history queries, and configuration
// scaffolding. It centralizes configuration resolution and socket discovery so
// subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
