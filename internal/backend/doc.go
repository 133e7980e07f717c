// Package backend implements the FlexOne HTTP server process.
//
// The server proxies chat requests to an OpenAI-compatible completion
// service and exposes the health endpoint the launcher polls during
// startup. A flock-based lock file enforces single-instance execution,
// and every launch is journaled in the run store. The Server satisfies
// ipc.Controller so the CLI can stop and inspect it over the control
// socket.
package backend
