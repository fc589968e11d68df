// Package notifications pushes acquisition and finalization events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need to guard notification calls. Event classes can be
// disabled individually through the [notifications] config section.
package notifications
