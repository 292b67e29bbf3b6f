package handshake

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/coapstack/dtls/pkg/protocol"
)

// RandomLength is the wire length of a Random: 4-byte gmt_unix_time plus
// 28 random bytes.
//
// https://tools.ietf.org/html/rfc4346#section-7.4.1.2
const RandomLength = 32

// Random is the 32-byte value ClientHello/ServerHello exchange; it seeds
// key derivation and signed tuples.
type Random struct {
	GMTUnixTime time.Time
	RandomBytes [28]byte
}

// Populate fills Random with the current time and fresh random bytes. It
// may be called multiple times (e.g. on handshake retry).
func (r *Random) Populate() error {
	r.GMTUnixTime = time.Now()
	_, err := rand.Read(r.RandomBytes[:])
	return err
}

// Marshal encodes the Random to its 32-byte wire form.
func (r *Random) Marshal() ([]byte, error) {
	out := make([]byte, RandomLength)
	binary.BigEndian.PutUint32(out, uint32(r.GMTUnixTime.Unix()))
	copy(out[4:], r.RandomBytes[:])
	return out, nil
}

// Unmarshal decodes a 32-byte Random.
func (r *Random) Unmarshal(data []byte) error {
	if len(data) < RandomLength {
		return &protocol.DecodeError{Offset: 0, Reason: "short random"}
	}
	r.GMTUnixTime = time.Unix(int64(binary.BigEndian.Uint32(data)), 0)
	copy(r.RandomBytes[:], data[4:RandomLength])
	return nil
}
