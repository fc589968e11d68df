package finalize

import (
	"time"

	"harvest/internal/library"
)

// Outcome classifies what one scan did with one release.
type Outcome int

const (
	// OutcomeCooldown means the release was attempted too recently.
	OutcomeCooldown Outcome = iota
	// OutcomeNoMatch means no client reported a transfer for the release.
	OutcomeNoMatch
	// OutcomeIncomplete means the matching transfer is below the threshold.
	OutcomeIncomplete
	// OutcomeNoFiles means nothing could be copied and relocation failed.
	OutcomeNoFiles
	// OutcomeCopied means audio files were copied into the library.
	OutcomeCopied
	// OutcomeRelocated means the client moved its storage into the library.
	OutcomeRelocated
	// OutcomeAlreadyPresent means every audio file was already in the
	// library, so nothing was copied.
	OutcomeAlreadyPresent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCooldown:
		return "cooldown"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeIncomplete:
		return "incomplete"
	case OutcomeNoFiles:
		return "no_files"
	case OutcomeCopied:
		return "copied"
	case OutcomeRelocated:
		return "relocated"
	case OutcomeAlreadyPresent:
		return "already_present"
	default:
		return "unknown"
	}
}

// Finalized reports whether the outcome put audio into the library.
func (o Outcome) Finalized() bool {
	return o == OutcomeCopied || o == OutcomeRelocated
}

// ReleaseResult is the per-release record of a scan.
type ReleaseResult struct {
	Release  library.Release
	Outcome  Outcome
	Source   string
	Progress float64
	Files    []string
	// Err carries the last non-fatal failure seen while finalizing, if any.
	Err error
}

// Report summarizes one scan.
type Report struct {
	Started  time.Time
	Finished time.Time
	Results  []ReleaseResult
}

// Counts tallies results by outcome.
func (r Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, len(r.Results))
	for _, result := range r.Results {
		counts[result.Outcome]++
	}
	return counts
}

// Finalized returns how many releases received audio in this scan.
func (r Report) Finalized() int {
	n := 0
	for _, result := range r.Results {
		if result.Outcome.Finalized() {
			n++
		}
	}
	return n
}
