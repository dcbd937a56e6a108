// Package tracker implements the per-peer latest-signature ledger used by
// each node to find the plurality Merkle root among its peers.
package tracker

import "github.com/decub/kvgossip/internal/merkle"

// Signature is a point-in-time claim about a replica's state: its current
// root (nil if empty) paired with the producer's local wall-clock millis.
type Signature struct {
	Root           *merkle.Hash
	LocalTimestamp uint64
}

// Tracker holds the latest Signature seen from each peer. Entries never
// expire in this version — a long-lived node accumulates entries for
// departed peers forever (see DESIGN.md).
type Tracker struct {
	history map[string]Signature
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{history: make(map[string]Signature)}
}

// UpdateSignature records sig for peerID if it is newer than whatever is
// already stored for that peer. Equal or lower timestamps are discarded,
// enforcing a monotonic-per-peer invariant.
func (t *Tracker) UpdateSignature(peerID string, sig Signature) {
	if old, ok := t.history[peerID]; ok && old.LocalTimestamp >= sig.LocalTimestamp {
		return
	}
	t.history[peerID] = sig
}

// mostCommonRoot returns the root value with the highest frequency across
// all tracked peers, ignoring peers with a nil root. Ties are broken
// arbitrarily by map iteration order.
func (t *Tracker) mostCommonRoot() *merkle.Hash {
	freq := make(map[merkle.Hash]int)
	for _, sig := range t.history {
		if sig.Root == nil {
			continue
		}
		freq[*sig.Root]++
	}
	if len(freq) == 0 {
		return nil
	}

	var best merkle.Hash
	bestCount := -1
	for root, count := range freq {
		if count > bestCount {
			best = root
			bestCount = count
		}
	}
	return &best
}

// TruthfulMajority returns the peer IDs whose latest signature carries the
// plurality root, or nil if no tracked peer has reported a non-nil root.
func (t *Tracker) TruthfulMajority() []string {
	root := t.mostCommonRoot()
	if root == nil {
		return nil
	}

	var peers []string
	for peerID, sig := range t.history {
		if sig.Root != nil && *sig.Root == *root {
			peers = append(peers, peerID)
		}
	}
	return peers
}
