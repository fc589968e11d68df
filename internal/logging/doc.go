// Package logging assembles structured slog loggers and formatting helpers used
// across harvest services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so the acquisition pipeline and the
// finalization worker tag log lines with release keys, decisions, and request
// IDs in the same shape. A no-op logger is provided for tests and wiring code
// that cannot fail.
package logging
