// Package services defines shared utilities consumed by the acquisition
// pipeline, the finalization worker, and the transport clients.
//
// Key responsibilities:
//   - Context helpers that stamp request IDs and release keys for logging.
//   - Structured error markers plus the Wrap helper so callers can tell a
//     transient transport failure (eligible for fallback) from a
//     configuration or validation problem.
package services
