package handshake

import "github.com/coapstack/dtls/pkg/protocol"

// Certificate carries the DER-encoded certificate chain, leaf first.
//
// https://tools.ietf.org/html/rfc5246#section-7.4.2
type Certificate struct {
	Certificate [][]byte
}

// Type implements Body.
func (c *Certificate) Type() Type { return TypeCertificate }

// Marshal implements Body.
func (c *Certificate) Marshal() ([]byte, error) {
	inner := protocol.NewWriter(0)
	for _, cert := range c.Certificate {
		inner.PutVector24(cert)
	}
	w := protocol.NewWriter(3 + inner.Len())
	w.PutVector24(inner.Bytes())
	return w.Bytes(), nil
}

// Unmarshal implements Body.
func (c *Certificate) Unmarshal(data []byte) error {
	r := protocol.NewReader(data)
	raw, err := r.Vector24()
	if err != nil {
		return err
	}
	inner := protocol.NewReader(raw)
	c.Certificate = nil
	for inner.Remaining() > 0 {
		cert, err := inner.Vector24()
		if err != nil {
			return err
		}
		c.Certificate = append(c.Certificate, cert)
	}
	return nil
}
