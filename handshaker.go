package dtls

import (
	"context"
	"crypto/x509"
	"time"

	"github.com/coapstack/dtls/internal/fragment"
	"github.com/coapstack/dtls/pkg/crypto/ciphersuite"
	"github.com/coapstack/dtls/pkg/crypto/elliptic"
	"github.com/coapstack/dtls/pkg/protocol/handshake"
	"github.com/coapstack/dtls/pkg/protocol/record"
)

// Role distinguishes which side of the handshake a Handshaker plays.
type Role uint8

// Roles a Handshaker can take.
const (
	RoleClient Role = iota
	RoleServer
)

// HandshakeState is a Handshaker's position in the RFC 6347 handshake
// state machine. FAILED is absorbing: once entered, the handshake never
// progresses further and the Connection is torn down.
type HandshakeState uint8

// Handshake states, server perspective (client is symmetric). No
// Handshaker enters StateCookieSent: the server's cookie exchange is
// handled before any Handshaker exists (see newHandshaker), and the client
// goes from StateInitial straight to StateHelloReceived.
const (
	StateInitial HandshakeState = iota
	StateCookieSent
	StateHelloReceived
	StateKeysExchanged
	StateCCSReceived
	StateFinishedReceived
	StateEstablished
	StateFailed
)

func (s HandshakeState) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateCookieSent:
		return "COOKIE_SENT"
	case StateHelloReceived:
		return "HELLO_RECEIVED"
	case StateKeysExchanged:
		return "KEYS_EXCHANGED"
	case StateCCSReceived:
		return "CCS_RECEIVED"
	case StateFinishedReceived:
		return "FINISHED_RECEIVED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// pendingMessage is a fully-reassembled handshake message waiting for its
// turn to be processed because earlier message_seq values haven't arrived
// yet.
type pendingMessage struct {
	msgType handshake.Type
	body    []byte
}

// deferredRecord is ApplicationData or a handshake record that arrived
// one epoch ahead of what the session is currently reading, buffered
// until ChangeCipherSpec catches the read side up. The full header is
// kept, not just the content type: the AEAD nonce and the replay window
// both key off epoch and sequence number, so replaying with a
// reconstructed header (sequence number reset to 0) would decrypt
// against the wrong nonce and collide in the fresh epoch's window for
// anything but the first deferred record.
type deferredRecord struct {
	header  record.Header
	payload []byte
}

// Handshaker drives one Connection's handshake to completion (or
// failure). It owns message sequencing, fragment reassembly, flight
// retransmission, and the cryptographic material accumulated along the
// way (randoms, selected suite, ECDHE keypair, pre-master/master secret).
//
// Grounded on pion-dtls's handshakeFSM (handshaker.go), rebuilt around
// explicit state names and this module's Session/Connection split
// (pion-dtls's Conn fuses both).
type Handshaker struct {
	role  Role
	state HandshakeState

	flight         Flight
	nextSendSeq    uint16
	nextReceiveSeq uint16

	reassembler *fragment.Reassembler
	pending     map[uint16]pendingMessage

	expectCCS bool
	deferred  []deferredRecord

	lastFlightDatagrams  [][]byte
	retransmitTimer      TimerHandle
	retransmitTimeout    time.Duration
	retransmitCount      int
	retransmitGeneration int

	handshakeTranscript []byte // concatenation of every handshake message's wire bytes, for Finished/CertificateVerify hashing

	clientRandom     handshake.Random
	serverRandom     handshake.Random
	cookie           []byte
	sessionID        []byte
	offeredSessionID []byte // client only: the session id we offered, to detect resumption

	selectedSuite ciphersuite.ID
	selectedCurve elliptic.Curve
	ecdhe         *elliptic.Keypair
	peerECPoint   []byte
	peerChain     []*x509.Certificate // client only: server's certificate chain, between Certificate and ServerKeyExchange
	pskIdentity   []byte
	preMasterSecret []byte

	resuming bool

	// pendingSession is the Session under negotiation, created once the
	// cipher suite is known. It is kept off Connection.session until the
	// Finished exchange completes, so a resumption attempt never disturbs
	// an already-established session (RFC 6347 §4.2.8).
	pendingSession *Session

	conn *Connection
}

// newHandshaker creates a Handshaker bound to conn, starting in the
// initial state for role.
//
// A server's Handshaker never sees message_seq 0: the cookie-less
// ClientHello and the HelloVerifyRequest answering it (RFC 6347 §4.2.1)
// are handled statelessly in Connector.tryStatelessClientHello, before
// any Connection or Handshaker exists. The first message a server
// Handshaker ever processes is the cookie-bearing ClientHello retry,
// which the client sends as message_seq 1, and the server's own first
// flight (ServerHello) continues that same numbering. Seeding both
// counters at 1 for the server role keeps acceptMessage's
// seq-vs-nextReceiveSeq comparison correct instead of leaving a
// seq-0 gap that nothing will ever fill.
func newHandshaker(conn *Connection, role Role, retransmitTimeout time.Duration) *Handshaker {
	h := &Handshaker{
		role:              role,
		state:             StateInitial,
		flight:            Flight0,
		reassembler:       fragment.New(),
		pending:           make(map[uint16]pendingMessage),
		retransmitTimeout: retransmitTimeout,
		conn:              conn,
	}
	if role == RoleServer {
		h.nextSendSeq = 1
		h.nextReceiveSeq = 1
	}
	return h
}

// fail transitions the handshaker to StateFailed and cancels its
// retransmit timer. The caller then retires it from its Connection
// (Connection.failHandshake); the Connection stays in the store as a
// garbage entry that can be evicted or re-armed.
func (h *Handshaker) fail(err error) error {
	h.state = StateFailed
	h.cancelRetransmitTimer()
	return &HandshakeError{Err: err}
}

// cancelRetransmitTimer stops the armed timer, if any, and bumps
// retransmitGeneration so a callback already in flight to the serial
// executor (raced past Cancel) finds itself stale and no-ops instead of
// resending a flight that progress has already moved past.
func (h *Handshaker) cancelRetransmitTimer() {
	h.retransmitGeneration++
	if h.retransmitTimer != nil {
		h.retransmitTimer.Cancel()
		h.retransmitTimer = nil
	}
}

// armRetransmitTimer schedules onFlightTimeout to run, funneled through
// this Connection's serial executor so it never races a concurrently
// arriving message, after the current backoff interval.
func (h *Handshaker) armRetransmitTimer(timers TimerService, maxRetransmissions int, resend func([][]byte) error) {
	h.cancelRetransmitTimer()
	generation := h.retransmitGeneration
	h.retransmitTimer = timers.ScheduleAfter(h.retransmitTimeout, func() {
		h.conn.Submit(func() {
			if h.retransmitGeneration != generation {
				return // superseded: cancelled, or a later flight already armed its own timer
			}
			if err := h.onFlightTimeout(maxRetransmissions, timers, resend); err != nil {
				h.conn.failHandshake(err)
			}
		})
	})
}

// onFlightTimeout is invoked by the TimerService when no progress has
// been made within the current retransmit interval. It resends the last
// flight verbatim (new record sequence numbers, same handshake message
// sequence numbers) and doubles the backoff, or fails the handshake once
// maxRetransmissions has been exhausted. Returning a non-nil error means
// the handshake is over; the caller retires the Connection's handshaker.
func (h *Handshaker) onFlightTimeout(maxRetransmissions int, timers TimerService, resend func([][]byte) error) error {
	if h.state == StateEstablished || h.state == StateFailed {
		return nil // progress already made, or already retired, since this fired
	}
	if h.retransmitCount >= maxRetransmissions {
		return h.fail(ErrHandshakeTimeout)
	}
	h.retransmitCount++
	h.retransmitTimeout *= 2

	if err := resend(h.lastFlightDatagrams); err != nil {
		return h.fail(err)
	}
	h.armRetransmitTimer(timers, maxRetransmissions, resend)
	return nil
}

// sendFlight records datagrams as the current flight's retransmission
// unit and arms the retransmit timer; the caller is responsible for
// actually writing them to the socket.
func (h *Handshaker) sendFlight(datagrams [][]byte, timers TimerService, maxRetransmissions int, resend func([][]byte) error) {
	h.lastFlightDatagrams = datagrams
	h.retransmitCount = 0
	h.armRetransmitTimer(timers, maxRetransmissions, resend)
}

// acceptMessage applies RFC 6347 §4.2.3 sequencing: a message behind
// nextReceiveSeq is a flight retransmission (ask the caller to resend our
// last flight); the expected one is processed immediately; anything ahead
// is buffered until the gap closes.
//
// process is called once per message, in increasing message_seq order,
// for every message that becomes ready as a result of this call
// (possibly more than one, if msg filled a gap).
//
// The retransmit timer for our own last flight is cancelled right here,
// as soon as a genuinely new (in-order) message is accepted — not
// deferred until process finishes. A slow collaborator inside process
// (a PSK/credential lookup, say) must never let an already-superseded
// flight get resent underneath it.
func (h *Handshaker) acceptMessage(seq uint16, msgType handshake.Type, body []byte, process func(uint16, handshake.Type, []byte) error) (isRetransmission bool, err error) {
	switch {
	case seq < h.nextReceiveSeq:
		return true, nil
	case seq > h.nextReceiveSeq:
		h.pending[seq] = pendingMessage{msgType: msgType, body: body}
		return false, nil
	}

	h.cancelRetransmitTimer()

	if err := h.acceptOne(seq, msgType, body, process); err != nil {
		return false, err
	}
	h.nextReceiveSeq++

	for {
		next, ok := h.pending[h.nextReceiveSeq]
		if !ok {
			break
		}
		delete(h.pending, h.nextReceiveSeq)
		if err := h.acceptOne(h.nextReceiveSeq, next.msgType, next.body, process); err != nil {
			return false, err
		}
		h.nextReceiveSeq++
	}
	return false, nil
}

// acceptOne records msg's wire bytes into the handshake transcript (per
// RFC 6347 §4.2.6, everything except HelloVerifyRequest and the very
// first, pre-cookie ClientHello) and then runs process on it. Finished
// messages are excluded too: their own verify_data must be computed over
// the transcript as it stood before they arrived, so process is
// responsible for recording a peer's Finished into the transcript itself,
// after verifying it.
func (h *Handshaker) acceptOne(seq uint16, msgType handshake.Type, body []byte, process func(uint16, handshake.Type, []byte) error) error {
	if msgType != handshake.TypeHelloVerifyRequest && msgType != handshake.TypeFinished {
		h.recordTranscript(msgType, seq, body)
	}
	return process(seq, msgType, body)
}

// pushFragment feeds one handshake fragment through reassembly and, once
// its message is complete, through acceptMessage.
func (h *Handshaker) pushFragment(f handshake.Fragment, process func(uint16, handshake.Type, []byte) error) (isRetransmission bool, err error) {
	complete, err := h.reassembler.Push(f)
	if err != nil {
		return false, err
	}
	if !complete {
		return false, nil
	}
	msgType, body, ok := h.reassembler.Message(f.Header.MessageSequence)
	if !ok {
		return false, nil
	}
	h.reassembler.Forget(f.Header.MessageSequence)
	return h.acceptMessage(f.Header.MessageSequence, msgType, body, process)
}

// recordTranscript appends a message's logical (unfragmented) wire bytes
// to the running handshake hash input, used by Finished/CertificateVerify.
func (h *Handshaker) recordTranscript(msgType handshake.Type, seq uint16, body []byte) {
	h.handshakeTranscript = append(h.handshakeTranscript, headerForWholeMessage(msgType, seq, body)...)
	h.handshakeTranscript = append(h.handshakeTranscript, body...)
}

// nextMessageSeq returns the sequence number to stamp on the next
// outbound handshake message and advances the counter.
func (h *Handshaker) nextMessageSeq() uint16 {
	seq := h.nextSendSeq
	h.nextSendSeq++
	return seq
}

// lookupContext returns a context that expires after 5 seconds. Nothing in
// this package calls it; CredentialStore lookups take no context.
func (h *Handshaker) lookupContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
