package handshake

// VerifyDataLength is the length of the Finished message's verify_data
// for every cipher suite this module supports (all use the default PRF
// output length from RFC 5246 §7.4.9).
const VerifyDataLength = 12

// Finished closes a flight, proving both sides agree on every handshake
// message exchanged and on the derived keys.
type Finished struct {
	VerifyData []byte
}

// Type implements Body.
func (f *Finished) Type() Type { return TypeFinished }

// Marshal implements Body.
func (f *Finished) Marshal() ([]byte, error) {
	return append([]byte{}, f.VerifyData...), nil
}

// Unmarshal implements Body.
func (f *Finished) Unmarshal(data []byte) error {
	f.VerifyData = append([]byte{}, data...)
	return nil
}
