package handshake

import "github.com/coapstack/dtls/pkg/protocol"

// SignatureHashAlgorithm is a (hash, signature) pair as negotiated by the
// signature_algorithms extension and CertificateRequest.
type SignatureHashAlgorithm struct {
	Hash      uint8
	Signature uint8
}

// CertificateRequest asks the client to authenticate with a certificate.
// The type is decodable, but no handshake path in this module sends or
// expects it.
type CertificateRequest struct {
	CertificateTypes        []uint8
	SignatureHashAlgorithms []SignatureHashAlgorithm
	CertificateAuthorities  [][]byte
}

// Type implements Body.
func (c *CertificateRequest) Type() Type { return TypeCertificateRequest }

// Marshal implements Body.
func (c *CertificateRequest) Marshal() ([]byte, error) {
	w := protocol.NewWriter(0)
	w.PutVector8(c.CertificateTypes)

	algs := protocol.NewWriter(2 * len(c.SignatureHashAlgorithms))
	for _, a := range c.SignatureHashAlgorithms {
		algs.PutUint8(a.Hash)
		algs.PutUint8(a.Signature)
	}
	w.PutVector16(algs.Bytes())

	cas := protocol.NewWriter(0)
	for _, ca := range c.CertificateAuthorities {
		cas.PutVector16(ca)
	}
	w.PutVector16(cas.Bytes())
	return w.Bytes(), nil
}

// Unmarshal implements Body.
func (c *CertificateRequest) Unmarshal(data []byte) error {
	r := protocol.NewReader(data)
	var err error
	if c.CertificateTypes, err = r.Vector8(); err != nil {
		return err
	}

	algsRaw, err := r.Vector16()
	if err != nil {
		return err
	}
	algsReader := protocol.NewReader(algsRaw)
	c.SignatureHashAlgorithms = nil
	for algsReader.Remaining() > 0 {
		h, err := algsReader.Uint8()
		if err != nil {
			return err
		}
		s, err := algsReader.Uint8()
		if err != nil {
			return err
		}
		c.SignatureHashAlgorithms = append(c.SignatureHashAlgorithms, SignatureHashAlgorithm{Hash: h, Signature: s})
	}

	casRaw, err := r.Vector16()
	if err != nil {
		return err
	}
	casReader := protocol.NewReader(casRaw)
	c.CertificateAuthorities = nil
	for casReader.Remaining() > 0 {
		ca, err := casReader.Vector16()
		if err != nil {
			return err
		}
		c.CertificateAuthorities = append(c.CertificateAuthorities, ca)
	}
	return nil
}
