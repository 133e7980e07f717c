// Package api defines the wire-format types for the backend HTTP surface and
// a client for it.
//
// The DTOs mirror the JSON bodies the backend serves: chat requests and
// replies, full completion details with token usage, the health payload, and
// the service banner. Errors always arrive as {"detail": "..."} with a
// matching HTTP status; the client surfaces those as StatusError values so
// callers can branch on the code.
//
// The same client backs the frontend transcript, the readiness probe run by
// the launcher, and the chat/health CLI commands.
package api
