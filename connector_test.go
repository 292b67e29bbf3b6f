package dtls

// Regression coverage for re-arming a Connection whose handshake already
// failed once: a peer that retries after a transient failure (a slow
// credential backend, a dropped flight that exhausted retransmission)
// must get a fresh handshake attempt rather than a Connection stuck
// replaying its first outcome forever.

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestHandleInboundReArmsGarbageServerConnection checks the server side
// of the re-arm: an existing store entry whose prior handshake failed
// (IsGarbage) gets a new Handshaker on the next inbound datagram, the
// same way a brand new entry does.
func TestHandleInboundReArmsGarbageServerConnection(t *testing.T) {
	nw := newFakeNetwork()
	serverSock := nw.listen("rearm-server")
	server := newTestConnector(t, serverSock, WithStoreCapacity(4))

	addr := fakeAddr("rearm-peer")
	conn, created, err := server.store.GetOrCreate(addr, server.cfg.clock, server.cfg.connectionIdleThreshold.Nanoseconds())
	require.NoError(t, err)
	require.True(t, created)

	conn.beginHandshake(RoleServer, server.cfg.retransmitTimeout)
	conn.failHandshake(ErrHandshakeTimeout)
	require.True(t, conn.IsGarbage(), "a failed handshake must leave the Connection garbage")

	datagram, err := rawClientHelloDatagram(nil, 0)
	require.NoError(t, err)
	server.handleInbound(addr, datagram)

	require.False(t, conn.IsGarbage(), "handleInbound must re-arm a garbage existing Connection, not just a newly created one")
	second, exists := server.store.Get(addr)
	require.True(t, exists)
	require.Same(t, conn, second, "re-arming must reuse the existing store entry, not allocate a new one")
}

// TestConnectorSendReArmsGarbageClientConnection checks the client side:
// Send against a peer whose Connection previously failed must start a
// new handshake and give the caller a channel tied to *this* attempt,
// not the already-closed one from the failed attempt.
func TestConnectorSendReArmsGarbageClientConnection(t *testing.T) {
	nw := newFakeNetwork()
	clientSock := nw.listen("rearm-client")
	client := newTestConnector(t, clientSock, WithStoreCapacity(4))

	peer := fakeAddr("rearm-server-side")
	conn, created, err := client.store.GetOrCreate(peer, client.cfg.clock, client.cfg.connectionIdleThreshold.Nanoseconds())
	require.NoError(t, err)
	require.True(t, created)

	staleCh := conn.establishedChan()
	conn.beginHandshake(RoleClient, client.cfg.retransmitTimeout)
	conn.failHandshake(ErrHandshakeTimeout)
	require.True(t, conn.IsGarbage())

	select {
	case <-staleCh:
	default:
		t.Fatal("the failed attempt's channel must already be closed")
	}

	// peer never answers, so this Send will eventually fail on its own
	// retransmission timeout — what matters here is only that a *new*
	// handshake attempt, with its own channel, gets started at all.
	done := make(chan error, 1)
	require.NoError(t, client.Send([]byte{0x00}, peer, func(err error) { done <- err }))

	require.Eventually(t, func() bool {
		return !conn.IsGarbage()
	}, time.Second, time.Millisecond, "Send must re-arm the garbage Connection with a new Handshaker")

	freshCh := conn.establishedChan()
	require.NotEqual(t, staleCh, freshCh, "the re-armed attempt must wait on a fresh channel, not the stale closed one")

	select {
	case <-done:
		t.Fatal("the unreachable peer must not resolve before its own retransmission timeout")
	case <-time.After(20 * time.Millisecond):
	}
}
