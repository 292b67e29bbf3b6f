package handshake

import "github.com/coapstack/dtls/pkg/protocol"

// ClientKeyExchange carries the client's contribution to key exchange.
// Like ServerKeyExchange, its wire shape depends on the negotiated key
// exchange algorithm.
type ClientKeyExchange struct {
	Identity  []byte // PSK identity, PSK and ECDHE_PSK only
	PublicKey []byte // ECDHE public point, ECDHE_PSK and ECDHE_ECDSA only
}

// Type implements Body.
func (c *ClientKeyExchange) Type() Type { return TypeClientKeyExchange }

// Marshal encodes the ECDHE_ECDSA shape (public key only) by default.
func (c *ClientKeyExchange) Marshal() ([]byte, error) {
	return c.MarshalECDHE()
}

// Unmarshal decodes the ECDHE_ECDSA shape.
func (c *ClientKeyExchange) Unmarshal(data []byte) error {
	return c.UnmarshalECDHE(data)
}

// MarshalPSK encodes the plain-PSK shape: identity only.
func (c *ClientKeyExchange) MarshalPSK() ([]byte, error) {
	w := protocol.NewWriter(2 + len(c.Identity))
	w.PutVector16(c.Identity)
	return w.Bytes(), nil
}

// UnmarshalPSK decodes the plain-PSK shape.
func (c *ClientKeyExchange) UnmarshalPSK(data []byte) error {
	r := protocol.NewReader(data)
	identity, err := r.Vector16()
	if err != nil {
		return err
	}
	c.Identity = identity
	return nil
}

// MarshalECDHEPSK encodes the ECDHE_PSK shape: identity || public point.
func (c *ClientKeyExchange) MarshalECDHEPSK() ([]byte, error) {
	w := protocol.NewWriter(0)
	w.PutVector16(c.Identity)
	w.PutVector8(c.PublicKey)
	return w.Bytes(), nil
}

// UnmarshalECDHEPSK decodes the ECDHE_PSK shape.
func (c *ClientKeyExchange) UnmarshalECDHEPSK(data []byte) error {
	r := protocol.NewReader(data)
	identity, err := r.Vector16()
	if err != nil {
		return err
	}
	c.Identity = identity
	c.PublicKey, err = r.Vector8()
	return err
}

// MarshalECDHE encodes the ECDHE_ECDSA shape: public point only.
func (c *ClientKeyExchange) MarshalECDHE() ([]byte, error) {
	w := protocol.NewWriter(1 + len(c.PublicKey))
	w.PutVector8(c.PublicKey)
	return w.Bytes(), nil
}

// UnmarshalECDHE decodes the ECDHE_ECDSA shape.
func (c *ClientKeyExchange) UnmarshalECDHE(data []byte) error {
	r := protocol.NewReader(data)
	pub, err := r.Vector8()
	if err != nil {
		return err
	}
	c.PublicKey = pub
	return nil
}
