// Package replay implements the DTLS 1.2 anti-replay sliding window
// (RFC 6347 §4.1.2.6): a 64-entry bitmask tracking which sequence numbers
// within the window have already been seen, per epoch.
//
// Grounded on pion-dtls's internal/replaydetector/replaydetector.go.
package replay

import "sync"

const windowSize = 64

// Detector tracks received sequence numbers for one epoch and rejects
// duplicates and anything too far behind the current right edge.
//
// Check must be followed by a call to the returned accept func only if the
// caller goes on to authenticate the record (decrypt it successfully) —
// marking a record as seen before its MAC/AEAD tag is verified would let
// an attacker poison the window with forged sequence numbers.
type Detector struct {
	mu       sync.Mutex
	larger   uint64 // largest sequence number accepted so far
	window   uint64 // bitmask relative to larger: bit i set means larger-i was seen
	accepted bool   // has any record been accepted yet
}

// New creates a Detector with an empty window.
func New() *Detector {
	return &Detector{}
}

// Check reports whether seq is acceptable (not a duplicate, not too old)
// and, if so, returns a function the caller must invoke after successfully
// authenticating the record to mark seq as seen.
func (d *Detector) Check(seq uint64) (accept func(), ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.accepted {
		return func() { d.markSeen(seq) }, true
	}

	switch {
	case seq > d.larger:
		return func() { d.markSeen(seq) }, true
	case d.larger-seq >= windowSize:
		return func() {}, false
	case d.window&(uint64(1)<<(d.larger-seq)) != 0:
		return func() {}, false
	default:
		shift := d.larger - seq
		return func() { d.window |= uint64(1) << shift }, true
	}
}

func (d *Detector) markSeen(seq uint64) {
	if !d.accepted {
		d.larger = seq
		d.window = 1
		d.accepted = true
		return
	}
	if seq <= d.larger {
		shift := d.larger - seq
		if shift < windowSize {
			d.window |= uint64(1) << shift
		}
		return
	}
	shift := seq - d.larger
	if shift >= windowSize {
		d.window = 1
	} else {
		d.window <<= shift
		d.window |= 1
	}
	d.larger = seq
}
