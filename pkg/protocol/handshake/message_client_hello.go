package handshake

import (
	"github.com/coapstack/dtls/pkg/crypto/ciphersuite"
	"github.com/coapstack/dtls/pkg/protocol"
)

// ClientHello is the first message a client sends, and the first message
// it resends once the server has validated its cookie.
//
// https://tools.ietf.org/html/rfc6347#section-4.2.1
type ClientHello struct {
	Version            protocol.Version
	Random             Random
	SessionID          []byte
	Cookie             []byte
	CipherSuites       []ciphersuite.ID
	CompressionMethods []uint8
	Extensions         []Extension
}

// Type implements Body.
func (c *ClientHello) Type() Type { return TypeClientHello }

// Marshal implements Body.
func (c *ClientHello) Marshal() ([]byte, error) {
	random, err := c.Random.Marshal()
	if err != nil {
		return nil, err
	}
	w := protocol.NewWriter(64)
	w.PutUint8(c.Version.Major)
	w.PutUint8(c.Version.Minor)
	w.PutBytes(random)
	w.PutVector8(c.SessionID)
	w.PutVector8(c.Cookie)

	suites := protocol.NewWriter(2 * len(c.CipherSuites))
	for _, id := range c.CipherSuites {
		suites.PutUint16(uint16(id))
	}
	w.PutVector16(suites.Bytes())

	compression := protocol.NewWriter(len(c.CompressionMethods))
	for _, m := range c.CompressionMethods {
		compression.PutUint8(m)
	}
	w.PutVector8(compression.Bytes())

	w.PutBytes(EncodeExtensions(c.Extensions))
	return w.Bytes(), nil
}

// Unmarshal implements Body.
func (c *ClientHello) Unmarshal(data []byte) error {
	r := protocol.NewReader(data)
	var err error
	if c.Version.Major, err = r.Uint8(); err != nil {
		return err
	}
	if c.Version.Minor, err = r.Uint8(); err != nil {
		return err
	}
	randomBytes, err := r.Bytes(RandomLength)
	if err != nil {
		return err
	}
	if err := c.Random.Unmarshal(randomBytes); err != nil {
		return err
	}
	if c.SessionID, err = r.Vector8(); err != nil {
		return err
	}
	if c.Cookie, err = r.Vector8(); err != nil {
		return err
	}
	if len(c.Cookie) > 255 {
		return &protocol.DecodeError{Offset: r.Offset(), Reason: "cookie too long"}
	}

	suitesRaw, err := r.Vector16()
	if err != nil {
		return err
	}
	suitesReader := protocol.NewReader(suitesRaw)
	c.CipherSuites = nil
	for suitesReader.Remaining() > 0 {
		id, err := suitesReader.Uint16()
		if err != nil {
			return err
		}
		c.CipherSuites = append(c.CipherSuites, ciphersuite.ID(id))
	}

	compressionRaw, err := r.Vector8()
	if err != nil {
		return err
	}
	c.CompressionMethods = append([]uint8{}, compressionRaw...)

	c.Extensions, err = DecodeExtensions(r)
	return err
}
