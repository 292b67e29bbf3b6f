package dtls

import (
	"crypto/sha256"

	"github.com/coapstack/dtls/pkg/crypto/ciphersuite"
	"github.com/coapstack/dtls/pkg/crypto/prf"
	"github.com/coapstack/dtls/pkg/protocol"
	"github.com/coapstack/dtls/pkg/protocol/handshake"
)

// abortHandshake fails h, retires it from the Connection, and — for the
// failure modes worth telling the peer about — sends a fatal alert under
// whatever session keys are available (epoch 0 plaintext, if the pending
// session hasn't derived keys yet).
func (c *Connection) abortHandshake(h *Handshaker, cause error, deps connectionDeps) error {
	werr := h.fail(cause)
	c.failHandshake(werr)
	if a, ok := fatalAlertFor(cause); ok {
		session := h.pendingSession
		if session == nil {
			session = NewSession(c.PeerAddr, 0, h.role == RoleClient)
		}
		if body, merr := a.Marshal(); merr == nil {
			if wire, serr := sealRecord(session, protocol.ContentTypeAlert, body); serr == nil {
				_ = deps.send([][]byte{wire})
			}
		}
	}
	return werr
}

// dispatchHandshakeMessage routes a fully reassembled handshake message to
// the role-appropriate state machine. It is called once per logical
// message, in message_seq order, from Handshaker.pushFragment.
func (c *Connection) dispatchHandshakeMessage(h *Handshaker, seq uint16, t handshake.Type, body []byte, deps connectionDeps) error {
	if h.role == RoleServer {
		return c.dispatchServerMessage(h, t, body, deps)
	}
	return c.dispatchClientMessage(h, t, body, deps)
}

// deriveMasterSecret computes and installs the master secret on session
// from the pre-master secret accumulated in h, then derives session's
// traffic keys.
func deriveMasterSecret(h *Handshaker, session *Session) error {
	clientRandom, err := h.clientRandom.Marshal()
	if err != nil {
		return err
	}
	serverRandom, err := h.serverRandom.Marshal()
	if err != nil {
		return err
	}
	session.ClientRandom = clientRandom
	session.ServerRandom = serverRandom
	session.MasterSecret = prf.MasterSecret(h.preMasterSecret, clientRandom, serverRandom, sha256.New)
	return session.DeriveKeys()
}

// dispatchServerMessage drives the server side of the handshake state
// machine: a ClientHello with a verified cookie has already caused this
// Connection and Handshaker to be created by the time any message reaches
// here.
func (c *Connection) dispatchServerMessage(h *Handshaker, t handshake.Type, body []byte, deps connectionDeps) error {
	switch t {
	case handshake.TypeClientHello:
		if h.state != StateInitial {
			return ErrUnexpectedMessage
		}
		ch := &handshake.ClientHello{}
		if err := ch.Unmarshal(body); err != nil {
			return err
		}
		if err := h.processClientHello(ch, deps.suites); err != nil {
			return c.abortHandshake(h, err, deps)
		}
		h.pendingSession = NewSession(c.PeerAddr, h.selectedSuite, false)

		messages, err := h.buildServerFlight4Messages(deps.credentials, deps.pskIdentityHint)
		if err != nil {
			return c.abortHandshake(h, err, deps)
		}
		datagrams, err := h.outboundFlight(h.pendingSession, messages)
		if err != nil {
			return c.abortHandshake(h, err, deps)
		}
		h.state = StateHelloReceived
		h.expectCCS = false
		h.sendFlight(datagrams, deps.timers, deps.maxRetransmissions, deps.send)
		return deps.send(datagrams)

	case handshake.TypeClientKeyExchange:
		if h.state != StateHelloReceived {
			return ErrUnexpectedMessage
		}
		if err := h.processClientKeyExchange(body, deps.credentials); err != nil {
			return c.abortHandshake(h, err, deps)
		}
		if err := deriveMasterSecret(h, h.pendingSession); err != nil {
			return c.abortHandshake(h, err, deps)
		}
		h.state = StateKeysExchanged
		h.expectCCS = true
		return nil

	case handshake.TypeFinished:
		if h.state != StateCCSReceived {
			return ErrUnexpectedMessage
		}
		finished := &handshake.Finished{}
		if err := finished.Unmarshal(body); err != nil {
			return err
		}
		if !h.verifyFinished(finished, h.pendingSession.MasterSecret, labelClientFinished) {
			return c.abortHandshake(h, ErrFinishedMismatch, deps)
		}
		seq := h.nextReceiveSeq
		h.recordTranscript(handshake.TypeFinished, seq, body)
		h.state = StateFinishedReceived

		datagrams, err := h.sendChangeCipherSpecAndFinished(h.pendingSession, labelServerFinished)
		if err != nil {
			return c.abortHandshake(h, err, deps)
		}
		session := h.pendingSession
		h.cancelRetransmitTimer()
		c.completeHandshake(session)
		h.state = StateEstablished
		return deps.send(datagrams)

	default:
		return ErrUnexpectedMessage
	}
}

// dispatchClientMessage drives the client side of the handshake state
// machine. buildClientHello/sendFlight for Flight 1 happen outside of
// message dispatch, in whatever initiates an outbound connection.
func (c *Connection) dispatchClientMessage(h *Handshaker, t handshake.Type, body []byte, deps connectionDeps) error {
	switch t {
	case handshake.TypeHelloRequest:
		// Server-initiated renegotiation: refused, session untouched.
		return c.sendNoRenegotiationAlert(deps)

	case handshake.TypeHelloVerifyRequest:
		if h.state != StateInitial {
			return ErrUnexpectedMessage
		}
		hvr := &handshake.HelloVerifyRequest{}
		if err := hvr.Unmarshal(body); err != nil {
			return err
		}
		h.processHelloVerifyRequest(hvr)

		ch, err := h.buildClientHello(deps.suites, deps.curves)
		if err != nil {
			return c.abortHandshake(h, err, deps)
		}
		skeleton := NewSession(c.PeerAddr, 0, true)
		datagrams, err := h.outboundFlight(skeleton, []handshake.Body{ch})
		if err != nil {
			return c.abortHandshake(h, err, deps)
		}
		h.sendFlight(datagrams, deps.timers, deps.maxRetransmissions, deps.send)
		return deps.send(datagrams)

	case handshake.TypeServerHello:
		if h.state != StateInitial {
			return ErrUnexpectedMessage
		}
		sh := &handshake.ServerHello{}
		if err := sh.Unmarshal(body); err != nil {
			return err
		}
		if err := h.processServerHello(sh); err != nil {
			return c.abortHandshake(h, err, deps)
		}
		h.pendingSession = NewSession(c.PeerAddr, h.selectedSuite, true)
		h.state = StateHelloReceived
		return nil

	case handshake.TypeCertificate:
		if h.state != StateHelloReceived {
			return ErrUnexpectedMessage
		}
		chain, err := h.processServerCertificate(body)
		if err != nil {
			return c.abortHandshake(h, err, deps)
		}
		if err := deps.credentials.VerifyCertChain(chain, ""); err != nil {
			return c.abortHandshake(h, ErrCertificateInvalid, deps)
		}
		h.peerChain = chain
		return nil

	case handshake.TypeServerKeyExchange:
		if h.state != StateHelloReceived {
			return ErrUnexpectedMessage
		}
		if err := h.processServerKeyExchange(body, h.peerChain, deps.curves); err != nil {
			return c.abortHandshake(h, err, deps)
		}
		return nil

	case handshake.TypeServerHelloDone:
		if h.state != StateHelloReceived {
			return ErrUnexpectedMessage
		}
		psk, err := c.clientPSK(deps, h.pskIdentity)
		if err != nil && h.selectedSuite.KeyExchangeAlgorithm() != ciphersuite.KeyExchangeECDHEECDSA {
			return c.abortHandshake(h, err, deps)
		}

		ckeMessages, _, err := h.buildClientKeyExchangeAndFinish(h.pendingSession, psk)
		if err != nil {
			return c.abortHandshake(h, err, deps)
		}
		ckeDatagrams, err := h.outboundFlight(h.pendingSession, ckeMessages)
		if err != nil {
			return c.abortHandshake(h, err, deps)
		}
		if err := deriveMasterSecret(h, h.pendingSession); err != nil {
			return c.abortHandshake(h, err, deps)
		}
		ccsDatagrams, err := h.sendChangeCipherSpecAndFinished(h.pendingSession, labelClientFinished)
		if err != nil {
			return c.abortHandshake(h, err, deps)
		}

		h.state = StateKeysExchanged
		h.expectCCS = true
		all := append(ckeDatagrams, ccsDatagrams...)
		h.sendFlight(all, deps.timers, deps.maxRetransmissions, deps.send)
		return deps.send(all)

	case handshake.TypeFinished:
		if h.state != StateCCSReceived {
			return ErrUnexpectedMessage
		}
		finished := &handshake.Finished{}
		if err := finished.Unmarshal(body); err != nil {
			return err
		}
		if !h.verifyFinished(finished, h.pendingSession.MasterSecret, labelServerFinished) {
			return c.abortHandshake(h, ErrFinishedMismatch, deps)
		}
		h.cancelRetransmitTimer()
		session := h.pendingSession
		c.completeHandshake(session)
		h.state = StateEstablished
		return nil

	default:
		return ErrUnexpectedMessage
	}
}

// clientPSK resolves the pre-shared key this client should present,
// looking it up under identity: the hint the server sent in
// ServerKeyExchange, or empty if the server sent none.
func (c *Connection) clientPSK(deps connectionDeps, identity []byte) ([]byte, error) {
	return deps.credentials.LookupPSK(identity)
}

// sendNoRenegotiationAlert answers a renegotiation attempt (HelloRequest
// received by a client, or a ClientHello at epoch > 0 received by a
// server) with a NO_RENEGOTIATION warning, leaving any established
// session untouched.
func (c *Connection) sendNoRenegotiationAlert(deps connectionDeps) error {
	session := c.Session()
	if session == nil {
		return ErrUnexpectedMessage
	}
	a := noRenegotiationAlert()
	body, err := a.Marshal()
	if err != nil {
		return err
	}
	wire, err := sealRecord(session, protocol.ContentTypeAlert, body)
	if err != nil {
		return err
	}
	return deps.send([][]byte{wire})
}
