package selection

import (
	"sort"

	"harvest/internal/matching"
	"harvest/internal/ranking"
	"harvest/internal/release"
)

// Policy carries the downloader-availability flags for one decision.
type Policy struct {
	AllowDirectDownload bool
	AllowSwarmClient    bool
	DiscographyEnabled  bool
}

// Decision is the outcome of Decide. Type is release.None exactly when
// Candidate is nil and Target is empty.
type Decision struct {
	Type              release.Transport
	Candidate         *release.CandidateRelease
	IsDiscographyPack bool
	Target            string
	Score             float64
}

// Found reports whether a transport was chosen.
func (d Decision) Found() bool {
	return d.Type != release.None
}

// Partition labels how a candidate relates to the request.
type Partition int

const (
	Rejected Partition = iota
	Single
	Pack
)

func (p Partition) String() string {
	switch p {
	case Single:
		return "single"
	case Pack:
		return "discography"
	default:
		return "rejected"
	}
}

// Evaluation is one candidate with its score and classification.
type Evaluation struct {
	Candidate release.CandidateRelease
	Score     float64
	Partition Partition
	Reason    string
	index     int
}

// Evaluate scores and classifies every candidate, best first within each
// partition. Rejected candidates carry the filter's reason.
func Evaluate(candidates []release.CandidateRelease, artist, album string, discographyEnabled bool) []Evaluation {
	out := make([]Evaluation, 0, len(candidates))
	for i, candidate := range candidates {
		eval := Evaluation{
			Candidate: candidate,
			Score:     ranking.CalculateRelevanceScore(candidate, artist, album),
			index:     i,
		}
		switch {
		case ranking.NonMusicReason(candidate.Title) != "":
			eval.Reason = ranking.NonMusicReason(candidate.Title)
		case matching.IsDiscographyTitle(candidate.Title, artist):
			if discographyEnabled {
				eval.Partition = Pack
			} else {
				eval.Reason = "Discography packs disabled"
			}
		default:
			eval.Reason = ranking.GetRejectionReason(candidate, artist, album)
			if eval.Reason == "" {
				eval.Partition = Single
			}
		}
		out = append(out, eval)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Partition != out[j].Partition {
			return partitionRank(out[i].Partition) < partitionRank(out[j].Partition)
		}
		return better(out[i], out[j])
	})
	return out
}

// Decide picks the transport and candidate for a release.
func Decide(candidates []release.CandidateRelease, artist, album string, policy Policy) Decision {
	evals := Evaluate(candidates, artist, album, policy.DiscographyEnabled)
	pool, isPack := activePartition(evals)
	if len(pool) == 0 {
		return Decision{}
	}
	for _, transport := range preference(isPack, policy) {
		if eval, ok := bestFor(pool, transport); ok {
			return newDecision(eval, transport, isPack)
		}
	}
	return Decision{}
}

// Alternatives returns fallback decisions for the transports that rank after
// decision's own in the same partition, best candidate per transport.
func Alternatives(decision Decision, candidates []release.CandidateRelease, artist, album string, policy Policy) []Decision {
	if !decision.Found() {
		return nil
	}
	evals := Evaluate(candidates, artist, album, policy.DiscographyEnabled)
	pool, isPack := activePartition(evals)

	order := preference(isPack, policy)
	start := len(order)
	for i, transport := range order {
		if transport == decision.Type {
			start = i + 1
			break
		}
	}

	var out []Decision
	for _, transport := range order[min(start, len(order)):] {
		if eval, ok := bestFor(pool, transport); ok {
			out = append(out, newDecision(eval, transport, isPack))
		}
	}
	return out
}

// preference lists allowed transports strongest first. Single releases favour
// magnets over torrent files; packs favour torrent files.
func preference(isPack bool, policy Policy) []release.Transport {
	order := make([]release.Transport, 0, 3)
	if policy.AllowDirectDownload {
		order = append(order, release.DirectFile)
	}
	if policy.AllowSwarmClient {
		if isPack {
			order = append(order, release.TorrentFile, release.Magnet)
		} else {
			order = append(order, release.Magnet, release.TorrentFile)
		}
	}
	return order
}

// activePartition returns the single-release candidates when any exist,
// otherwise the discography packs.
func activePartition(evals []Evaluation) ([]Evaluation, bool) {
	var singles, packs []Evaluation
	for _, eval := range evals {
		switch eval.Partition {
		case Single:
			singles = append(singles, eval)
		case Pack:
			packs = append(packs, eval)
		}
	}
	if len(singles) > 0 {
		return singles, false
	}
	return packs, len(packs) > 0
}

func bestFor(pool []Evaluation, transport release.Transport) (Evaluation, bool) {
	var best Evaluation
	found := false
	for _, eval := range pool {
		if !eval.Candidate.Reachable(transport) {
			continue
		}
		if !found || better(eval, best) {
			best = eval
			found = true
		}
	}
	return best, found
}

func better(a, b Evaluation) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Candidate.Seeders != b.Candidate.Seeders {
		return a.Candidate.Seeders > b.Candidate.Seeders
	}
	return a.index < b.index
}

func partitionRank(p Partition) int {
	switch p {
	case Single:
		return 0
	case Pack:
		return 1
	default:
		return 2
	}
}

func newDecision(eval Evaluation, transport release.Transport, isPack bool) Decision {
	candidate := eval.Candidate
	return Decision{
		Type:              transport,
		Candidate:         &candidate,
		IsDiscographyPack: isPack,
		Target:            candidate.Target(transport),
		Score:             eval.Score,
	}
}
