// Package ipc exposes the backend over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs for the
// control protocol. The server delegates to a small Controller interface so
// the backend stays decoupled from the wire layer, while the client dials
// with a short timeout so CLI commands fail fast when the backend is offline.
package ipc
