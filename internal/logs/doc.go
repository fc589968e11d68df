// Package logs reads the daemon's log file for "harvest daemon logs": the
// last N lines, then optionally new lines as they are appended. Memory use is
// bounded by N regardless of file size.
package logs
