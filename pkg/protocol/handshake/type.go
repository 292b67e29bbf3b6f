// Package handshake implements the DTLS handshake message types: the
// 12-byte handshake header used for fragmentation/reassembly, and the
// per-type bodies (ClientHello, ServerHello, ...).
//
// Grounded on pion-dtls's handshake.go and handshake_message_*.go.
package handshake

import "fmt"

// Type is the one-byte handshake message type tag.
//
// https://tools.ietf.org/html/rfc5246#section-7.4
type Type uint8

// Handshake message types used by this module. DTLS 1.3-only types are
// intentionally absent (Non-goal).
const (
	TypeHelloRequest       Type = 0
	TypeClientHello        Type = 1
	TypeServerHello        Type = 2
	TypeHelloVerifyRequest Type = 3
	TypeCertificate        Type = 11
	TypeServerKeyExchange  Type = 12
	TypeCertificateRequest Type = 13
	TypeServerHelloDone    Type = 14
	TypeCertificateVerify  Type = 15
	TypeClientKeyExchange  Type = 16
	TypeFinished           Type = 20
)

func (t Type) String() string {
	switch t {
	case TypeHelloRequest:
		return "HelloRequest"
	case TypeClientHello:
		return "ClientHello"
	case TypeServerHello:
		return "ServerHello"
	case TypeHelloVerifyRequest:
		return "HelloVerifyRequest"
	case TypeCertificate:
		return "Certificate"
	case TypeServerKeyExchange:
		return "ServerKeyExchange"
	case TypeCertificateRequest:
		return "CertificateRequest"
	case TypeServerHelloDone:
		return "ServerHelloDone"
	case TypeCertificateVerify:
		return "CertificateVerify"
	case TypeClientKeyExchange:
		return "ClientKeyExchange"
	case TypeFinished:
		return "Finished"
	default:
		return fmt.Sprintf("Unknown(%d)", byte(t))
	}
}

// Body is implemented by every concrete handshake message payload.
type Body interface {
	Type() Type
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// Decode builds an empty Body for t and unmarshals data into it. Unknown
// types are a decode error rather than a panic, since a peer can send any
// byte on the wire.
func Decode(t Type, data []byte) (Body, error) {
	var body Body
	switch t {
	case TypeHelloRequest:
		body = &HelloRequest{}
	case TypeClientHello:
		body = &ClientHello{}
	case TypeServerHello:
		body = &ServerHello{}
	case TypeHelloVerifyRequest:
		body = &HelloVerifyRequest{}
	case TypeCertificate:
		body = &Certificate{}
	case TypeServerKeyExchange:
		body = &ServerKeyExchange{}
	case TypeCertificateRequest:
		body = &CertificateRequest{}
	case TypeServerHelloDone:
		body = &ServerHelloDone{}
	case TypeCertificateVerify:
		body = &CertificateVerify{}
	case TypeClientKeyExchange:
		body = &ClientKeyExchange{}
	case TypeFinished:
		body = &Finished{}
	default:
		return nil, fmt.Errorf("handshake: unknown message type %d", byte(t))
	}
	if err := body.Unmarshal(data); err != nil {
		return nil, err
	}
	return body, nil
}
