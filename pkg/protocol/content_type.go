// Package protocol holds the wire-level types shared by the record layer
// and the handshake state machine: content types, protocol version, and
// the errors that decoding can raise.
package protocol

import "fmt"

// ContentType is the outermost discriminator of a DTLS record, carried
// in the first byte of the 13-byte record header.
//
// https://tools.ietf.org/html/rfc5246#section-6.2.1
type ContentType byte

// ContentType values defined by RFC 5246/6347.
const (
	ContentTypeChangeCipherSpec ContentType = 20
	ContentTypeAlert            ContentType = 21
	ContentTypeHandshake        ContentType = 22
	ContentTypeApplicationData  ContentType = 23
)

func (c ContentType) String() string {
	switch c {
	case ContentTypeChangeCipherSpec:
		return "ChangeCipherSpec"
	case ContentTypeAlert:
		return "Alert"
	case ContentTypeHandshake:
		return "Handshake"
	case ContentTypeApplicationData:
		return "ApplicationData"
	default:
		return fmt.Sprintf("Unknown(%d)", byte(c))
	}
}

// Version is the two-byte DTLS protocol version field. DTLS versions are
// encoded as the bitwise complement of the DTLS version number (1.2 is
// {254, 253}).
type Version struct {
	Major, Minor uint8
}

// Version1_2 is DTLS 1.2, {254, 253} on the wire. This is the only version
// this module negotiates; DTLS 1.3 is a Non-goal.
var Version1_2 = Version{Major: 0xfe, Minor: 0xfd}

// DecodeError reports a wire-decoding failure: truncation, a reserved-value
// violation, or a length-prefix overflow. Offset is the byte offset into the
// buffer being decoded at which the failure was detected.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("dtls: decode error at offset %d: %s", e.Offset, e.Reason)
}
