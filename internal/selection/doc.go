// Package selection chooses one transport and one candidate for a requested
// release.
//
// Decide partitions matching candidates into single releases and discography
// packs, lets any single release outrank every pack, and resolves the transport
// preference inside the winning partition. Alternatives lists the remaining
// reachable transports from the same pool so a caller can fall back without
// re-running the decision with different flags. Nothing here performs I/O.
package selection
