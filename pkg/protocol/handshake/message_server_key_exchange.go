package handshake

import "github.com/coapstack/dtls/pkg/protocol"

// ServerKeyExchange carries the server's contribution to key exchange. Its
// wire shape depends on the negotiated cipher suite's key exchange
// algorithm, which both peers already know from ServerHello, so the
// generic Marshal/Unmarshal implement the ECDHE_ECDSA shape (curve point
// plus signature) and the PSK-specific variants are separate methods the
// handshaker calls directly once it knows which suite is in play.
//
// https://tools.ietf.org/html/rfc4492#section-5.4 (ECDHE)
// https://tools.ietf.org/html/rfc4279#section-2 (PSK identity hint)
type ServerKeyExchange struct {
	IdentityHint           []byte // PSK identity hint, ECDHE_PSK and plain PSK only
	NamedCurve             uint16
	PublicKey              []byte
	SignatureHashAlgorithm SignatureHashAlgorithm
	Signature              []byte
}

// Type implements Body.
func (s *ServerKeyExchange) Type() Type { return TypeServerKeyExchange }

// Marshal encodes the ECDHE_ECDSA shape: named_curve || point || signed tuple.
func (s *ServerKeyExchange) Marshal() ([]byte, error) {
	return s.MarshalECDHEECDSA()
}

// Unmarshal decodes the ECDHE_ECDSA shape.
func (s *ServerKeyExchange) Unmarshal(data []byte) error {
	return s.UnmarshalECDHEECDSA(data)
}

// MarshalPSK encodes the plain-PSK shape: identity hint only.
func (s *ServerKeyExchange) MarshalPSK() ([]byte, error) {
	w := protocol.NewWriter(2 + len(s.IdentityHint))
	w.PutVector16(s.IdentityHint)
	return w.Bytes(), nil
}

// UnmarshalPSK decodes the plain-PSK shape.
func (s *ServerKeyExchange) UnmarshalPSK(data []byte) error {
	r := protocol.NewReader(data)
	hint, err := r.Vector16()
	if err != nil {
		return err
	}
	s.IdentityHint = hint
	return nil
}

// MarshalECDHEPSK encodes the ECDHE_PSK shape: identity hint || curve || point.
func (s *ServerKeyExchange) MarshalECDHEPSK() ([]byte, error) {
	w := protocol.NewWriter(0)
	w.PutVector16(s.IdentityHint)
	w.PutUint8(3) // ECCurveType: named_curve
	w.PutUint16(s.NamedCurve)
	w.PutVector8(s.PublicKey)
	return w.Bytes(), nil
}

// UnmarshalECDHEPSK decodes the ECDHE_PSK shape.
func (s *ServerKeyExchange) UnmarshalECDHEPSK(data []byte) error {
	r := protocol.NewReader(data)
	hint, err := r.Vector16()
	if err != nil {
		return err
	}
	s.IdentityHint = hint
	return s.unmarshalECPoint(r)
}

// MarshalECDHEECDSA encodes named_curve || point || signature_hash_algorithm || signature.
func (s *ServerKeyExchange) MarshalECDHEECDSA() ([]byte, error) {
	w := protocol.NewWriter(0)
	w.PutUint8(3) // ECCurveType: named_curve
	w.PutUint16(s.NamedCurve)
	w.PutVector8(s.PublicKey)
	w.PutUint8(s.SignatureHashAlgorithm.Hash)
	w.PutUint8(s.SignatureHashAlgorithm.Signature)
	w.PutVector16(s.Signature)
	return w.Bytes(), nil
}

// UnmarshalECDHEECDSA decodes named_curve || point || signature_hash_algorithm || signature.
func (s *ServerKeyExchange) UnmarshalECDHEECDSA(data []byte) error {
	r := protocol.NewReader(data)
	if err := s.unmarshalECPoint(r); err != nil {
		return err
	}
	var err error
	if s.SignatureHashAlgorithm.Hash, err = r.Uint8(); err != nil {
		return err
	}
	if s.SignatureHashAlgorithm.Signature, err = r.Uint8(); err != nil {
		return err
	}
	s.Signature, err = r.Vector16()
	return err
}

func (s *ServerKeyExchange) unmarshalECPoint(r *protocol.Reader) error {
	curveType, err := r.Uint8()
	if err != nil {
		return err
	}
	if curveType != 3 {
		return &protocol.DecodeError{Offset: r.Offset(), Reason: "unsupported EC curve type (explicit curves not supported)"}
	}
	if s.NamedCurve, err = r.Uint16(); err != nil {
		return err
	}
	s.PublicKey, err = r.Vector8()
	return err
}
