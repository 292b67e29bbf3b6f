package dtls

// Shared test fixtures for the root package's tests: an in-memory UDP
// substitute (fakeNetwork/fakeUDPSocket) and a single-identity PSK
// CredentialStore, used by the end-to-end scenarios in integration_test.go
// plus the narrower store/handshaker unit tests.

import (
	"crypto/x509"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coapstack/dtls/pkg/crypto/ciphersuite"
	"github.com/coapstack/dtls/pkg/protocol"
	"github.com/coapstack/dtls/pkg/protocol/handshake"
	"github.com/coapstack/dtls/pkg/protocol/record"
)

// fakeAddr is a net.Addr over a plain string, letting tests name peers
// "client" / "server" instead of parsing real IP:port pairs.
type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

// fakeDatagram is one in-flight message on the fakeNetwork, tagged with
// its sender so the receiving fakeUDPSocket.Recv can report a source
// address the way a real UDP socket would.
type fakeDatagram struct {
	from net.Addr
	data []byte
}

// fakeNetwork routes fakeUDPSocket.SendTo calls by address string,
// standing in for the kernel's UDP demultiplexing.
type fakeNetwork struct {
	mu    sync.Mutex
	socks map[string]*fakeUDPSocket
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{socks: make(map[string]*fakeUDPSocket)}
}

// listen registers and returns a new socket bound to addr.
func (n *fakeNetwork) listen(addr string) *fakeUDPSocket {
	s := &fakeUDPSocket{addr: fakeAddr(addr), inbox: make(chan fakeDatagram, 64), net: n}
	n.mu.Lock()
	n.socks[addr] = s
	n.mu.Unlock()
	return s
}

// fakeUDPSocket implements UdpSocket over in-process channels so handshake
// tests run with no real kernel sockets and no network flakiness.
type fakeUDPSocket struct {
	addr    net.Addr
	inbox   chan fakeDatagram
	net     *fakeNetwork
	closeMu sync.Mutex
	closed  bool
}

func (s *fakeUDPSocket) SendTo(addr net.Addr, data []byte) error {
	s.net.mu.Lock()
	dst, ok := s.net.socks[addr.String()]
	s.net.mu.Unlock()
	if !ok {
		return nil // no listener at addr: datagram vanishes, as on a real network
	}
	cp := append([]byte(nil), data...)
	select {
	case dst.inbox <- fakeDatagram{from: s.addr, data: cp}:
	default: // inbox full: drop, matching a real socket's receive buffer overflow
	}
	return nil
}

func (s *fakeUDPSocket) Recv() (net.Addr, []byte, error) {
	dg, ok := <-s.inbox
	if !ok {
		return nil, nil, errFakeSocketClosed
	}
	return dg.from, dg.data, nil
}

func (s *fakeUDPSocket) LocalAddr() net.Addr { return s.addr }

func (s *fakeUDPSocket) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.inbox)
	}
	return nil
}

type fakeSocketClosedError struct{}

func (fakeSocketClosedError) Error() string { return "dtls: fake socket closed" }

var errFakeSocketClosed = fakeSocketClosedError{}

// fakePSKStore is a single-identity CredentialStore: exactly one
// (identity, secret) pair resolves, optionally after a configurable
// delay so tests can exercise the slow-credential-lookup path.
type fakePSKStore struct {
	identity string
	secret   []byte
	delay    time.Duration
}

func (s *fakePSKStore) LookupPSK(identity []byte) ([]byte, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if string(identity) != s.identity {
		return nil, ErrPSKNotFound
	}
	return s.secret, nil
}

func (s *fakePSKStore) VerifyCertChain(chain []*x509.Certificate, hostname string) error {
	return nil
}

func (s *fakePSKStore) TrustedRPKs() [][]byte { return nil }

func (s *fakePSKStore) OwnCertificate() ([]*x509.Certificate, any, error) {
	return nil, nil, errCertificateKeyNotECDSA
}

// rawClientHelloDatagram marshals a bare-bones, epoch-0 plaintext
// ClientHello record, letting a test drive the server's stateless cookie
// path directly instead of through a full client Handshaker.
func rawClientHelloDatagram(cookie []byte, recordSeq uint64) ([]byte, error) {
	random := handshake.Random{}
	if err := random.Populate(); err != nil {
		return nil, err
	}
	ch := &handshake.ClientHello{
		Version:            protocolVersion,
		Random:             random,
		Cookie:             cookie,
		CipherSuites:       []ciphersuite.ID{ciphersuite.TLS_PSK_WITH_AES_128_CCM_8},
		CompressionMethods: []uint8{0},
	}
	body, err := ch.Marshal()
	if err != nil {
		return nil, err
	}
	hHeader := handshake.Header{Type: handshake.TypeClientHello, Length: uint32(len(body)), MessageSequence: 0, FragmentOffset: 0, FragmentLength: uint32(len(body))}
	payload := append(hHeader.Marshal(), body...)

	rHeader := record.Header{ContentType: protocol.ContentTypeHandshake, Version: protocolVersion, Epoch: 0, SequenceNumber: recordSeq, ContentLen: uint16(len(payload))}
	wire, err := rHeader.Marshal()
	if err != nil {
		return nil, err
	}
	return append(wire, payload...), nil
}

var errRecvTimeout = errors.New("dtls: test Recv timed out")

// recvWithTimeout reads one datagram off sock, failing rather than
// blocking forever if nothing arrives within d.
func recvWithTimeout(t *testing.T, sock *fakeUDPSocket, d time.Duration) (net.Addr, []byte, error) {
	t.Helper()
	type result struct {
		addr net.Addr
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		addr, data, err := sock.Recv()
		ch <- result{addr, data, err}
	}()
	select {
	case r := <-ch:
		return r.addr, r.data, r.err
	case <-time.After(d):
		return nil, nil, errRecvTimeout
	}
}

// unpackTestDatagram splits a raw UDP payload into its records, the same
// way Connector.handleInbound does.
func unpackTestDatagram(buf []byte) ([][]byte, error) {
	return record.UnpackDatagram(buf)
}

// decodeHandshakeMessage parses one epoch-0 plaintext record as a
// handshake fragment, returning its logical message type and body.
func decodeHandshakeMessage(rawRecord []byte) (handshake.Type, []byte, error) {
	var header record.Header
	if err := header.Unmarshal(rawRecord); err != nil {
		return 0, nil, err
	}
	var frag handshake.Fragment
	if err := frag.Unmarshal(rawRecord[record.HeaderSize:]); err != nil {
		return 0, nil, err
	}
	return frag.Header.Type, frag.Data, nil
}

// renegotiationClientHello seals a fresh, otherwise-unremarkable
// ClientHello under session's current write epoch, simulating a client
// that attempts renegotiation on an already-established session.
func renegotiationClientHello(t *testing.T, session *Session) []byte {
	t.Helper()
	random := handshake.Random{}
	require.NoError(t, random.Populate())
	ch := &handshake.ClientHello{
		Version:            protocolVersion,
		Random:             random,
		CipherSuites:       []ciphersuite.ID{ciphersuite.TLS_PSK_WITH_AES_128_CCM_8},
		CompressionMethods: []uint8{0},
	}
	body, err := ch.Marshal()
	require.NoError(t, err)
	hHeader := handshake.Header{Type: handshake.TypeClientHello, Length: uint32(len(body)), MessageSequence: 0, FragmentOffset: 0, FragmentLength: uint32(len(body))}
	payload := append(hHeader.Marshal(), body...)

	header, ciphertext, err := session.EncryptOutbound(protocol.ContentTypeHandshake, payload)
	require.NoError(t, err)
	wire, err := header.Marshal()
	require.NoError(t, err)
	return append(wire, ciphertext...)
}
