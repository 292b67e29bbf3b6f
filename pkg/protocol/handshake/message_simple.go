package handshake

// HelloRequest carries no data; a server may send it to ask a client to
// renegotiate. This module refuses renegotiation but still needs to
// decode the message to recognize and reject it.
type HelloRequest struct{}

// Type implements Body.
func (h *HelloRequest) Type() Type { return TypeHelloRequest }

// Marshal implements Body.
func (h *HelloRequest) Marshal() ([]byte, error) { return nil, nil }

// Unmarshal implements Body.
func (h *HelloRequest) Unmarshal(data []byte) error { return nil }

// ServerHelloDone marks the end of the server's first flight; it carries
// no data.
type ServerHelloDone struct{}

// Type implements Body.
func (s *ServerHelloDone) Type() Type { return TypeServerHelloDone }

// Marshal implements Body.
func (s *ServerHelloDone) Marshal() ([]byte, error) { return nil, nil }

// Unmarshal implements Body.
func (s *ServerHelloDone) Unmarshal(data []byte) error { return nil }
