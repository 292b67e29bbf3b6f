// Package record implements the DTLS record layer framing: the 13-byte
// header (type, version, epoch, sequence number, length) and the datagram
// splitter used because a single UDP datagram may carry several records.
//
// Grounded on pion-dtls's record_layer_header.go/record_layer.go.
package record

import (
	"github.com/coapstack/dtls/pkg/protocol"
)

// HeaderSize is the fixed size of a DTLS record header.
const HeaderSize = 13

// MaxSequenceNumber is the largest representable 48-bit sequence number.
// Reaching it forces a new handshake rather than wrapping.
const MaxSequenceNumber = 0x0000FFFFFFFFFFFF

// Header is the 13-byte record header: type(1) || version(2) || epoch(2)
// || seq(6) || length(2).
type Header struct {
	ContentType    protocol.ContentType
	Version        protocol.Version
	Epoch          uint16
	SequenceNumber uint64 // 48-bit
	ContentLen     uint16
}

// Marshal encodes the header. It fails if SequenceNumber exceeds the
// 48-bit range the wire format allows.
func (h *Header) Marshal() ([]byte, error) {
	if h.SequenceNumber > MaxSequenceNumber {
		return nil, errSequenceNumberOverflow
	}
	w := protocol.NewWriter(HeaderSize)
	w.PutUint8(byte(h.ContentType))
	w.PutUint8(h.Version.Major)
	w.PutUint8(h.Version.Minor)
	w.PutUint16(h.Epoch)
	w.PutUint48(h.SequenceNumber)
	w.PutUint16(h.ContentLen)
	return w.Bytes(), nil
}

// Unmarshal decodes a record header from the front of data.
func (h *Header) Unmarshal(data []byte) error {
	r := protocol.NewReader(data)
	ct, err := r.Uint8()
	if err != nil {
		return err
	}
	h.ContentType = protocol.ContentType(ct)
	if h.Version.Major, err = r.Uint8(); err != nil {
		return err
	}
	if h.Version.Minor, err = r.Uint8(); err != nil {
		return err
	}
	if h.Epoch, err = r.Uint16(); err != nil {
		return err
	}
	if h.SequenceNumber, err = r.Uint48(); err != nil {
		return err
	}
	if h.ContentLen, err = r.Uint16(); err != nil {
		return err
	}
	return nil
}

// UnpackDatagram splits a UDP datagram into the one or more records it may
// contain, per RFC 6347 §4.2.3: multiple records belonging to the same
// flight may be packed into a single datagram.
func UnpackDatagram(buf []byte) ([][]byte, error) {
	var out [][]byte
	offset := 0
	for offset != len(buf) {
		if len(buf)-offset < HeaderSize {
			return nil, &protocol.DecodeError{Offset: offset, Reason: "short record header"}
		}
		var h Header
		if err := h.Unmarshal(buf[offset:]); err != nil {
			return nil, err
		}
		pktLen := HeaderSize + int(h.ContentLen)
		if offset+pktLen > len(buf) {
			return nil, &protocol.DecodeError{Offset: offset, Reason: "record length exceeds datagram"}
		}
		out = append(out, buf[offset:offset+pktLen])
		offset += pktLen
	}
	return out, nil
}
