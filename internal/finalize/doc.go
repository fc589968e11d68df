// Package finalize reconciles finished transfers with the library.
//
// A Worker scans the library for releases that still miss audio, finds the
// matching transfer across every configured client, and copies the finished
// audio flat into the release directory. Attempts on a release are throttled
// by an in-memory cooldown keyed by (artist id, folder name). The attempt is
// stamped before any transport call, so a slow client cannot cause the same
// release to be attempted twice inside one window. Every per-release failure
// is an Outcome, never an error: the release simply stays missing until a
// later scan.
package finalize
