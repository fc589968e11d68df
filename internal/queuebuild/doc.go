// Package queuebuild turns a raw peer-search file listing into an ordered,
// per-track download plan.
//
// Build keeps audio files above a bitrate floor, requires the remote folder
// shape ".../<artist>/.../<release>/..." (or a single "<artist> - <release>"
// folder), groups files by release folder and disc, picks the primary group,
// drops bonus/live/alternate versions, infers track numbers from filename
// prefixes, and emits one QueueItem per file. Every filter tier relaxes to the
// next when it would leave too little, so a listing with at least one usable
// audio file never produces an empty plan.
package queuebuild
