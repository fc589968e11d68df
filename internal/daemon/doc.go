// Package daemon coordinates the long-running harvest process.
//
// It wires configuration, the library store, and the finalization worker into
// a single lifecycle with flock-based locking so two daemons never scan the
// same library. A loopback JSON API exposes status, the missing-release list,
// and an on-demand scan for the CLI.
//
// Keep orchestration logic here: finalization and acquisition rules live in
// their own packages while the daemon owns startup, shutdown, and status.
package daemon
