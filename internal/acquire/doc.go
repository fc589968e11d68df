// Package acquire orchestrates a single release grab.
//
// Service.Acquire walks the broad-first query list against the indexer,
// stopping once enough usable candidates are pooled, asks the selection
// engine for a transport, and hands the target to the matching transfer
// client. A failed hand-off falls through to the next reachable transport in
// the same candidate pool; selection is never re-run with different policy.
package acquire
