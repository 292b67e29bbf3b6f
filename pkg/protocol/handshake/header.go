package handshake

import "github.com/coapstack/dtls/pkg/protocol"

// HeaderSize is the fixed size of a handshake message header.
const HeaderSize = 12

// Header is the 12-byte handshake header: type(1) || total_length(3) ||
// message_seq(2) || fragment_offset(3) || fragment_length(3). Every
// handshake message carries this even when it is not fragmented (in which
// case FragmentOffset is 0 and FragmentLength == Length).
type Header struct {
	Type            Type
	Length          uint32 // total_length, 24-bit
	MessageSequence uint16
	FragmentOffset  uint32 // 24-bit
	FragmentLength  uint32 // 24-bit
}

// Marshal encodes the header.
func (h *Header) Marshal() []byte {
	w := protocol.NewWriter(HeaderSize)
	w.PutUint8(byte(h.Type))
	w.PutUint24(h.Length)
	w.PutUint16(h.MessageSequence)
	w.PutUint24(h.FragmentOffset)
	w.PutUint24(h.FragmentLength)
	return w.Bytes()
}

// Unmarshal decodes a header from the front of data.
func (h *Header) Unmarshal(data []byte) error {
	r := protocol.NewReader(data)
	t, err := r.Uint8()
	if err != nil {
		return err
	}
	h.Type = Type(t)
	if h.Length, err = r.Uint24(); err != nil {
		return err
	}
	if h.MessageSequence, err = r.Uint16(); err != nil {
		return err
	}
	if h.FragmentOffset, err = r.Uint24(); err != nil {
		return err
	}
	if h.FragmentLength, err = r.Uint24(); err != nil {
		return err
	}
	return nil
}

// Fragment is a handshake header plus the (possibly partial) bytes of the
// message body that accompanied it on the wire. The fragment-buffer
// (internal/fragment) reassembles a run of Fragments sharing a
// MessageSequence into one logical message before it is handed to Decode.
type Fragment struct {
	Header Header
	Data   []byte
}

// Marshal encodes the fragment header followed by its data.
func (f *Fragment) Marshal() []byte {
	return append(f.Header.Marshal(), f.Data...)
}

// Unmarshal decodes a fragment header and takes the remainder of data as
// the fragment body. It validates that FragmentLength matches what's
// actually present.
func (f *Fragment) Unmarshal(data []byte) error {
	if err := f.Header.Unmarshal(data); err != nil {
		return err
	}
	body := data[HeaderSize:]
	if uint32(len(body)) < f.Header.FragmentLength {
		return &protocol.DecodeError{Offset: HeaderSize, Reason: "fragment shorter than declared fragment_length"}
	}
	f.Data = body[:f.Header.FragmentLength]
	return nil
}
