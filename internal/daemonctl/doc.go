// Package daemonctl lets the CLI control a harvest daemon: launch it
// detached, query and trigger it through the loopback status API, and stop
// it through its pid file.
package daemonctl
