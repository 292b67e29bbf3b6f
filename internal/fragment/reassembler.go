// Package fragment reassembles DTLS handshake messages that arrive split
// across multiple handshake fragments (RFC 6347 §4.2.3), tolerating
// out-of-order delivery, overlap, and duplication.
//
// pion-dtls's own fragment_buffer.go is a stub (its pop() is
// unimplemented); this package implements full gap/overlap/duplicate
// handling instead of reusing that stub.
package fragment

import (
	"errors"
	"sort"

	"github.com/coapstack/dtls/pkg/protocol/handshake"
)

var errLengthMismatch = errors.New("fragment: conflicting total length for message_seq")

type interval struct {
	start, end uint32 // [start, end), byte offsets within the message
}

type message struct {
	msgType handshake.Type
	total   uint32
	data    []byte
	have    []interval
}

// Reassembler accumulates fragments for every in-flight message_seq of one
// handshake flight and reports when each becomes complete.
type Reassembler struct {
	messages map[uint16]*message
}

// New creates an empty Reassembler.
func New() *Reassembler {
	return &Reassembler{messages: make(map[uint16]*message)}
}

// Push records one fragment. It returns true once the message it belongs
// to has every byte from 0 to its declared total length.
func (r *Reassembler) Push(f handshake.Fragment) (complete bool, err error) {
	msg, ok := r.messages[f.Header.MessageSequence]
	if !ok {
		msg = &message{
			msgType: f.Header.Type,
			total:   f.Header.Length,
			data:    make([]byte, f.Header.Length),
		}
		r.messages[f.Header.MessageSequence] = msg
	} else if msg.total != f.Header.Length {
		return false, errLengthMismatch
	}

	start := f.Header.FragmentOffset
	end := start + f.Header.FragmentLength
	if end > msg.total {
		return false, errors.New("fragment: fragment extends past declared message length")
	}
	copy(msg.data[start:end], f.Data)
	msg.have = insert(msg.have, interval{start: start, end: end})

	return isComplete(msg.have, msg.total), nil
}

// Message returns the reassembled body for messageSeq and whether it is
// complete. The caller is expected to have seen Push return true for this
// messageSeq first.
func (r *Reassembler) Message(messageSeq uint16) (msgType handshake.Type, data []byte, ok bool) {
	msg, exists := r.messages[messageSeq]
	if !exists || !isComplete(msg.have, msg.total) {
		return 0, nil, false
	}
	return msg.msgType, msg.data, true
}

// Forget discards all state for messageSeq, once its message has been
// consumed or the flight has advanced past it.
func (r *Reassembler) Forget(messageSeq uint16) {
	delete(r.messages, messageSeq)
}

// insert merges a new interval into the sorted, non-overlapping interval
// set, coalescing it with any neighbors it touches or overlaps.
func insert(have []interval, add interval) []interval {
	have = append(have, add)
	sort.Slice(have, func(i, j int) bool { return have[i].start < have[j].start })

	merged := have[:0]
	for _, iv := range have {
		if len(merged) > 0 && iv.start <= merged[len(merged)-1].end {
			if iv.end > merged[len(merged)-1].end {
				merged[len(merged)-1].end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func isComplete(have []interval, total uint32) bool {
	if total == 0 {
		return true
	}
	return len(have) == 1 && have[0].start == 0 && have[0].end == total
}
