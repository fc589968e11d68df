// Package slskd queries the Soulseek network through an slskd daemon.
//
// Search starts a network search, polls until slskd reports it complete or the
// configured timeout passes, and flattens every peer response into
// queuebuild.RawSearchFileEntry values. Enqueue submits a built plan to the
// peers in FIFO order, and ListTransfers reports downloads grouped per remote
// folder so the finalization worker can reconcile them like any other
// transfer.
package slskd
