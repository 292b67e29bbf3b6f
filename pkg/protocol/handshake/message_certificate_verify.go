package handshake

import "github.com/coapstack/dtls/pkg/protocol"

// CertificateVerify proves possession of the private key matching a
// client certificate by signing the handshake transcript so far.
type CertificateVerify struct {
	SignatureHashAlgorithm SignatureHashAlgorithm
	Signature              []byte
}

// Type implements Body.
func (c *CertificateVerify) Type() Type { return TypeCertificateVerify }

// Marshal implements Body.
func (c *CertificateVerify) Marshal() ([]byte, error) {
	w := protocol.NewWriter(2 + 2 + len(c.Signature))
	w.PutUint8(c.SignatureHashAlgorithm.Hash)
	w.PutUint8(c.SignatureHashAlgorithm.Signature)
	w.PutVector16(c.Signature)
	return w.Bytes(), nil
}

// Unmarshal implements Body.
func (c *CertificateVerify) Unmarshal(data []byte) error {
	r := protocol.NewReader(data)
	var err error
	if c.SignatureHashAlgorithm.Hash, err = r.Uint8(); err != nil {
		return err
	}
	if c.SignatureHashAlgorithm.Signature, err = r.Uint8(); err != nil {
		return err
	}
	c.Signature, err = r.Vector16()
	return err
}
