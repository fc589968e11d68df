// Package main hosts the harvest CLI entrypoint and command graph.
//
// The Cobra command tree covers one-shot work (search, grab, plan, finalize),
// library bookkeeping, configuration scaffolding, and daemon control through
// the loopback status API. Configuration and logger construction live in
// commandContext so subcommands only deal with presentation.
package main
