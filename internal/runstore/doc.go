// Package runstore persists a journal of managed process runs in SQLite.
//
// Each backend launch becomes a run row that moves through
// launched -> ready -> stopped/failed as the launcher observes the process.
// The journal is operational state only; chat content is never stored. It
// powers the history shown by the status and runs commands.
package runstore
