// Package preflight provides readiness checks for the external services
// and filesystem paths harvest depends on.
//
// The CLI "harvest config validate --check" runs RunAll and prints one line
// per check. Services that are disabled in configuration are skipped.
package preflight
