package handshake

import (
	"github.com/coapstack/dtls/pkg/crypto/ciphersuite"
	"github.com/coapstack/dtls/pkg/protocol"
)

// ServerHello announces the server's chosen session parameters: random,
// session id, and the single cipher suite/compression method selected
// from the client's offered lists.
type ServerHello struct {
	Version           protocol.Version
	Random            Random
	SessionID         []byte
	CipherSuite       ciphersuite.ID
	CompressionMethod uint8
	Extensions        []Extension
}

// Type implements Body.
func (s *ServerHello) Type() Type { return TypeServerHello }

// Marshal implements Body.
func (s *ServerHello) Marshal() ([]byte, error) {
	random, err := s.Random.Marshal()
	if err != nil {
		return nil, err
	}
	w := protocol.NewWriter(40)
	w.PutUint8(s.Version.Major)
	w.PutUint8(s.Version.Minor)
	w.PutBytes(random)
	w.PutVector8(s.SessionID)
	w.PutUint16(uint16(s.CipherSuite))
	w.PutUint8(s.CompressionMethod)
	w.PutBytes(EncodeExtensions(s.Extensions))
	return w.Bytes(), nil
}

// Unmarshal implements Body.
func (s *ServerHello) Unmarshal(data []byte) error {
	r := protocol.NewReader(data)
	var err error
	if s.Version.Major, err = r.Uint8(); err != nil {
		return err
	}
	if s.Version.Minor, err = r.Uint8(); err != nil {
		return err
	}
	randomBytes, err := r.Bytes(RandomLength)
	if err != nil {
		return err
	}
	if err := s.Random.Unmarshal(randomBytes); err != nil {
		return err
	}
	if s.SessionID, err = r.Vector8(); err != nil {
		return err
	}
	suite, err := r.Uint16()
	if err != nil {
		return err
	}
	s.CipherSuite = ciphersuite.ID(suite)
	if s.CompressionMethod, err = r.Uint8(); err != nil {
		return err
	}
	s.Extensions, err = DecodeExtensions(r)
	return err
}
