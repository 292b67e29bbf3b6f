package dtls

/*
  Handshake messages are grouped into flights (RFC 6347 §4.2.4): although a
  flight may carry several messages, they are retransmitted as one unit on
  a single timer.

  Full handshake:

  Client                                          Server
  ------                                          ------
                                      Waiting                 Flight 0

  ClientHello             -------->                           Flight 1

                          <-------    HelloVerifyRequest      Flight 2

  ClientHello              -------->                           Flight 3

                                             ServerHello    \
                                            Certificate*     \
                                      ServerKeyExchange*      Flight 4
                                     CertificateRequest*     /
                          <--------      ServerHelloDone    /

  Certificate*                                              \
  ClientKeyExchange                                          \
  CertificateVerify*                                          Flight 5
  [ChangeCipherSpec]                                         /
  Finished                -------->                         /

                                      [ChangeCipherSpec]    \ Flight 6
                          <--------             Finished    /

  Session-resuming handshake (no cookie exchange):

  Client                                          Server
  ------                                          ------
                                      Waiting                 Flight 0

  ClientHello             -------->                           Flight 1

                                             ServerHello    \
                                      [ChangeCipherSpec]      Flight 4b
                          <--------             Finished    /

  [ChangeCipherSpec]                                        \ Flight 5b
  Finished                -------->                         /

                                      [ChangeCipherSpec]    \ Flight 6
                          <--------             Finished    /
*/

// Flight identifies which step of the handshake state machine a
// Handshaker currently occupies. Retransmission operates per-flight: a
// flight's outbound bytes are cached so the timer can resend them
// verbatim without re-deriving anything.
//
// Grounded on pion-dtls's flight.go FlightVal.
type Flight uint8

// Flight values for both the full and session-resuming handshakes.
const (
	Flight0 Flight = iota + 1
	Flight1
	Flight2
	Flight3
	Flight4
	Flight4b
	Flight5
	Flight5b
	Flight6
)

func (f Flight) String() string {
	switch f {
	case Flight0:
		return "Flight 0"
	case Flight1:
		return "Flight 1"
	case Flight2:
		return "Flight 2"
	case Flight3:
		return "Flight 3"
	case Flight4:
		return "Flight 4"
	case Flight4b:
		return "Flight 4b"
	case Flight5:
		return "Flight 5"
	case Flight5b:
		return "Flight 5b"
	case Flight6:
		return "Flight 6"
	default:
		return "Invalid Flight"
	}
}

// isLastSendFlight reports whether f is the handshake's last flight this
// side transmits.
func (f Flight) isLastSendFlight() bool {
	return f == Flight6 || f == Flight5b
}

// isLastRecvFlight reports whether f is the handshake's last flight this
// side waits to receive before completing.
func (f Flight) isLastRecvFlight() bool {
	return f == Flight5 || f == Flight4b
}
