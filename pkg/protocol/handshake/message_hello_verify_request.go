package handshake

import "github.com/coapstack/dtls/pkg/protocol"

// HelloVerifyRequest is the server's stateless reply to a first
// ClientHello, carrying the cookie the client must echo.
//
// https://tools.ietf.org/html/rfc6347#section-4.2.1
type HelloVerifyRequest struct {
	Version protocol.Version
	Cookie  []byte
}

// Type implements Body.
func (h *HelloVerifyRequest) Type() Type { return TypeHelloVerifyRequest }

// Marshal implements Body.
func (h *HelloVerifyRequest) Marshal() ([]byte, error) {
	if len(h.Cookie) > 255 {
		return nil, &protocol.DecodeError{Offset: 0, Reason: "cookie too long"}
	}
	w := protocol.NewWriter(2 + 1 + len(h.Cookie))
	w.PutUint8(h.Version.Major)
	w.PutUint8(h.Version.Minor)
	w.PutVector8(h.Cookie)
	return w.Bytes(), nil
}

// Unmarshal implements Body.
func (h *HelloVerifyRequest) Unmarshal(data []byte) error {
	r := protocol.NewReader(data)
	var err error
	if h.Version.Major, err = r.Uint8(); err != nil {
		return err
	}
	if h.Version.Minor, err = r.Uint8(); err != nil {
		return err
	}
	h.Cookie, err = r.Vector8()
	return err
}
