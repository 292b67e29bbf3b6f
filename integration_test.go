package dtls

// End-to-end scenarios — full handshake, stateless HelloVerifyRequest,
// renegotiation refusal, and connection-store exhaustion — driven through
// the public Connector API over the in-memory fakeUDPSocket pair defined
// in dtls_internal_test.go. Session preservation across a fresh
// ClientHello and retransmission surviving a slow credential lookup are
// exercised at finer grain in connection_test.go and
// handshaker_retransmit_test.go instead, since both turn on timing/state
// internal to Connection/Handshaker rather than on anything observable
// purely through Send/SetRawDataReceiver.

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coapstack/dtls/pkg/crypto/ciphersuite"
	"github.com/coapstack/dtls/pkg/protocol/alert"
)

const testPSKIdentity = "Client_identity"

var testPSKSecret = []byte("secretPSK")

func newTestPSKStore() *fakePSKStore {
	return &fakePSKStore{identity: testPSKIdentity, secret: testPSKSecret}
}

func newTestConnector(t *testing.T, sock UdpSocket, opts ...Option) *Connector {
	t.Helper()
	base := []Option{
		WithCredentialStore(newTestPSKStore()),
		WithCipherSuites(ciphersuite.TLS_PSK_WITH_AES_128_CCM_8),
		WithPSKIdentityHint([]byte(testPSKIdentity)),
		WithRetransmitTimeout(50 * time.Millisecond),
		WithMaxRetransmissions(2),
	}
	c, err := NewConnector(sock, append(base, opts...)...)
	require.NoError(t, err)
	require.NoError(t, c.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Stop(ctx)
	})
	return c
}

// TestFullPSKHandshake drives a full client/server PSK handshake
// (flights 1 through 6, including the cookie round trip) and checks a
// 1-byte application payload survives once the session establishes, with
// on_connect firing exactly once and on_sent firing only after Finished.
func TestFullPSKHandshake(t *testing.T) {
	nw := newFakeNetwork()
	clientSock := nw.listen("e1-client")
	serverSock := nw.listen("e1-server")

	server := newTestConnector(t, serverSock, WithStoreCapacity(4))
	client := newTestConnector(t, clientSock, WithStoreCapacity(4))

	var mu sync.Mutex
	var serverGotData []byte
	server.SetRawDataReceiver(func(_ net.Addr, data []byte) {
		mu.Lock()
		serverGotData = append([]byte(nil), data...)
		mu.Unlock()
	})

	var connectCount int
	var connectMu sync.Mutex
	client.SetOnConnect(func(net.Addr) {
		connectMu.Lock()
		connectCount++
		connectMu.Unlock()
	})

	var sentCount int
	client.SetOnSent(func(_ net.Addr, err error) {
		require.NoError(t, err)
		connectMu.Lock()
		sentCount++
		connectMu.Unlock()
	})

	done := make(chan error, 1)
	require.NoError(t, client.Send([]byte{0x01}, serverSock.LocalAddr(), func(err error) { done <- err }))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("handshake did not complete in time")
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(serverGotData) == 1 && serverGotData[0] == 0x01
	}, time.Second, 10*time.Millisecond, "server never received the application payload")

	conn, ok := server.store.Get(clientSock.LocalAddr())
	require.True(t, ok)
	require.NotNil(t, conn.Session())
	require.True(t, conn.Session().Established())

	connectMu.Lock()
	require.Equal(t, 1, connectCount, "on_connect must fire exactly once")
	require.Equal(t, 1, sentCount, "on_sent must fire exactly once, after Finished")
	connectMu.Unlock()
}

// TestHelloVerifyRequestWithoutState confirms the server answers a
// cookie-less ClientHello with HelloVerifyRequest while creating no
// Connection at all: the cookie round trip must stay stateless.
func TestHelloVerifyRequestWithoutState(t *testing.T) {
	nw := newFakeNetwork()
	probeSock := nw.listen("e2-probe")
	serverSock := nw.listen("e2-server")

	server := newTestConnector(t, serverSock, WithStoreCapacity(4))

	datagram, err := rawClientHelloDatagram(nil, 0)
	require.NoError(t, err)
	require.NoError(t, probeSock.SendTo(serverSock.LocalAddr(), datagram))

	replyFrom, reply, err := recvWithTimeout(t, probeSock, time.Second)
	require.NoError(t, err)
	require.Equal(t, serverSock.LocalAddr().String(), replyFrom.String())

	records, err := unpackTestDatagram(reply)
	require.NoError(t, err)
	require.Len(t, records, 1)

	msgType, body, err := decodeHandshakeMessage(records[0])
	require.NoError(t, err)
	require.Equal(t, "HelloVerifyRequest", msgType.String())
	require.NotEmpty(t, body)

	_, exists := server.store.Get(probeSock.LocalAddr())
	require.False(t, exists, "connection_store.get(client_addr) must return null before cookie verification")
	require.Equal(t, 0, server.store.Len())
}

// TestRenegotiationRefusal has a client with an established session
// send a ClientHello under its current (non-zero) write epoch; the
// server must answer with a WARNING/NO_RENEGOTIATION alert and leave the
// session untouched.
func TestRenegotiationRefusal(t *testing.T) {
	nw := newFakeNetwork()
	clientSock := nw.listen("e5-client")
	serverSock := nw.listen("e5-server")

	server := newTestConnector(t, serverSock, WithStoreCapacity(4))
	client := newTestConnector(t, clientSock, WithStoreCapacity(4))

	done := make(chan error, 1)
	require.NoError(t, client.Send([]byte{0x00}, serverSock.LocalAddr(), func(err error) { done <- err }))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("initial handshake did not complete in time")
	}

	clientConn, ok := client.store.Get(serverSock.LocalAddr())
	require.True(t, ok)
	session := clientConn.Session()
	require.NotNil(t, session)
	require.True(t, session.Established())
	originalSessionID := append([]byte(nil), session.SessionID...)

	// The server sends its refusal back to the client, so the client's
	// Connector — still running its own receive loop — is what observes it.
	alertCh := make(chan alert.Alert, 1)
	client.SetAlertHandler(func(_ net.Addr, a alert.Alert) { alertCh <- a })

	wire := renegotiationClientHello(t, session)
	require.NoError(t, clientSock.SendTo(serverSock.LocalAddr(), wire))

	select {
	case a := <-alertCh:
		require.Equal(t, alert.Warning, a.Level)
		require.Equal(t, alert.NoRenegotiation, a.Description)
	case <-time.After(time.Second):
		t.Fatal("server never answered the renegotiation attempt")
	}

	serverConn, ok := server.store.Get(clientSock.LocalAddr())
	require.True(t, ok)
	require.NotNil(t, serverConn.Session())
	require.True(t, serverConn.Session().Established(), "the established session must survive a refused renegotiation")
	require.Equal(t, originalSessionID, serverConn.Session().SessionID)
}

// TestConnectionStoreExhaustion fills a capacity-1 server store with one
// established connection, then checks a second peer's handshake never
// gets a Connection allocated: the server answers HelloVerifyRequest (the
// stateless part, which needs no store slot) but silently drops the
// cookie-bearing ClientHello once the store reports full (RFC 6347
// §4.2.8).
func TestConnectionStoreExhaustion(t *testing.T) {
	nw := newFakeNetwork()
	clientASock := nw.listen("e6-clientA")
	clientBSock := nw.listen("e6-clientB")
	serverSock := nw.listen("e6-server")

	server := newTestConnector(t, serverSock, WithStoreCapacity(1))
	clientA := newTestConnector(t, clientASock, WithStoreCapacity(4))

	doneA := make(chan error, 1)
	require.NoError(t, clientA.Send([]byte{0x00}, serverSock.LocalAddr(), func(err error) { doneA <- err }))
	select {
	case err := <-doneA:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("clientA's handshake did not complete in time")
	}
	require.Equal(t, 1, server.store.Len())

	clientB := newTestConnector(t, clientBSock, WithStoreCapacity(4), WithRetransmitTimeout(20*time.Millisecond), WithMaxRetransmissions(1))
	doneB := make(chan error, 1)
	require.NoError(t, clientB.Send([]byte{0x00}, serverSock.LocalAddr(), func(err error) { doneB <- err }))

	select {
	case err := <-doneB:
		require.Error(t, err, "clientB must never establish while the store is full")
	case <-time.After(2 * time.Second):
		t.Fatal("clientB's handshake attempt never resolved")
	}

	require.Equal(t, 1, server.store.Len(), "the store must still hold only clientA's connection")
	_, hasB := server.store.Get(clientBSock.LocalAddr())
	require.False(t, hasB, "no connection must ever be created for the rejected peer")

	connA, ok := server.store.Get(clientASock.LocalAddr())
	require.True(t, ok)
	require.True(t, connA.Session().Established(), "the original connection must be unaffected by the rejected attempt")
}
