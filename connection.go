package dtls

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coapstack/dtls/internal/workerpool"
	"github.com/coapstack/dtls/pkg/crypto/ciphersuite"
	"github.com/coapstack/dtls/pkg/crypto/elliptic"
	"github.com/coapstack/dtls/pkg/protocol"
	"github.com/coapstack/dtls/pkg/protocol/alert"
	"github.com/coapstack/dtls/pkg/protocol/handshake"
	"github.com/coapstack/dtls/pkg/protocol/record"
)

// ConnectionLifecycle is a Connection's coarse state for store bookkeeping
// and eviction: session established, incomplete handshake, or terminated.
type ConnectionLifecycle uint8

// Lifecycle states.
const (
	LifecycleHandshaking ConnectionLifecycle = iota
	LifecycleEstablished
	LifecycleTerminated
)

// Connection is the per-peer state the store indexes by remote address:
// at most one established Session, at most one in-flight Handshaker (never
// both at once: a ClientHello or HelloRequest arriving on an established
// session is refused rather than starting a new handshake), and the serial
// executor that funnels every task touching this peer through a single
// FIFO so Session/Handshaker mutation never needs its own lock.
//
// Grounded on pion-dtls's Conn (conn.go), split so that Connection owns
// the Handshaker, which holds only a back-reference to its owning
// Connection rather than forming a strong reference cycle between the
// two.
type Connection struct {
	PeerAddr net.Addr

	mu         sync.Mutex
	session    *Session
	handshaker *Handshaker
	lifecycle  ConnectionLifecycle

	serial *workerpool.Serial

	lastActivity atomic.Int64

	established     chan struct{}
	establishedOnce sync.Once
	establishErr    error
}

func newConnection(addr net.Addr, pool *workerpool.Pool) *Connection {
	return &Connection{
		PeerAddr:    addr,
		serial:      workerpool.NewSerial(pool),
		established: make(chan struct{}),
	}
}

// touch stamps last-activity for LRU purposes.
func (c *Connection) touch(clock MonotonicClock) {
	c.lastActivity.Store(clock.NowNanos())
}

// Submit funnels task through this Connection's serial executor,
// guaranteeing it never overlaps another task for the same peer.
func (c *Connection) Submit(task func()) {
	c.serial.Submit(task)
}

// beginHandshake installs a fresh Handshaker for role, replacing any
// prior failed one.
func (c *Connection) beginHandshake(role Role, retransmitTimeout time.Duration) *Handshaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lifecycle == LifecycleTerminated {
		// Re-arming after a prior failure: established/establishErr are
		// observed by goroutines that already read the old (closed)
		// channel's outcome, so this attempt needs its own channel and
		// Once rather than trying to reopen the old one.
		c.established = make(chan struct{})
		c.establishedOnce = sync.Once{}
		c.establishErr = nil
	}
	c.handshaker = newHandshaker(c, role, retransmitTimeout)
	c.lifecycle = LifecycleHandshaking
	return c.handshaker
}

// establishedChan returns the channel that closes when the
// handshake in progress at the time of the call completes or fails.
// Callers that need to block on an outcome must fetch this under lock
// rather than reading c.established directly, since a later re-arm
// replaces it.
func (c *Connection) establishedChan() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.established
}

// completeHandshake promotes session to established, retires the
// handshaker, and unblocks anything waiting on c.established — including
// any Connector.Send call that queued data behind this handshake.
func (c *Connection) completeHandshake(session *Session) {
	c.mu.Lock()
	session.MarkEstablished()
	c.session = session
	c.handshaker = nil
	c.lifecycle = LifecycleEstablished
	c.establishedOnce.Do(func() { close(c.established) })
	c.mu.Unlock()
}

// failHandshake retires the handshaker without a session, unblocking any
// waiters with err. The close happens under the same lock beginHandshake
// takes to swap in a fresh channel/Once on re-arm, so a waiter can never
// observe a channel that's been replaced out from under it mid-close.
func (c *Connection) failHandshake(err error) {
	c.mu.Lock()
	c.handshaker = nil
	c.lifecycle = LifecycleTerminated
	c.establishErr = err
	c.establishedOnce.Do(func() { close(c.established) })
	c.mu.Unlock()
}

// Session returns the established session, if any.
func (c *Connection) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// IsGarbage reports whether this Connection has neither an established
// session nor an in-flight handshake — the store's eviction criterion.
func (c *Connection) IsGarbage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session == nil && c.handshaker == nil
}

// handleDatagram splits one UDP datagram into its records and processes
// each in order. It must only be called from within this Connection's
// serial executor.
func (c *Connection) handleDatagram(buf []byte, deps connectionDeps) error {
	records, err := record.UnpackDatagram(buf)
	if err != nil {
		return err
	}
	for _, raw := range records {
		var header record.Header
		if err := header.Unmarshal(raw); err != nil {
			return err
		}
		payload := raw[record.HeaderSize:]
		if err := c.handleRecord(header, payload, deps); err != nil {
			deps.logger.Debugf("dtls: dropping record from %s: %v", c.PeerAddr, err)
		}
	}
	return nil
}

// connectionDeps are the external collaborators handleRecord/handshake
// processing need, threaded through explicitly rather than stashed on
// Connection so tests can substitute fakes per call.
type connectionDeps struct {
	credentials CredentialStore
	suites      []ciphersuite.ID
	curves      []elliptic.Curve
	timers      TimerService
	logger      interface {
		Debugf(format string, args ...interface{})
	}
	maxRetransmissions int
	pskIdentityHint    []byte
	send               func(datagrams [][]byte) error
	onAlert            func(net.Addr, alert.Alert)
	onApplicationData  func(net.Addr, []byte)
}

func (c *Connection) handleRecord(header record.Header, payload []byte, deps connectionDeps) error {
	c.mu.Lock()
	session := c.session
	handshaker := c.handshaker
	c.mu.Unlock()

	// The session actually in force for decrypting this record: the
	// established one once the handshake has completed, or whatever the
	// in-progress handshake has derived so far otherwise. Finished
	// arrives encrypted under pendingSession's epoch-1 keys well before
	// completeHandshake promotes it to c.session.
	active := session
	if active == nil && handshaker != nil {
		active = handshaker.pendingSession
	}

	if active != nil && header.Epoch > active.ReadEpoch() {
		if handshaker != nil && header.Epoch == active.ReadEpoch()+1 {
			handshaker.deferred = append(handshaker.deferred, deferredRecord{header: header, payload: payload})
			return nil
		}
		return ErrEpochMismatch
	}

	var plaintext []byte
	var err error
	if active != nil {
		plaintext, err = active.DecryptInbound(header, payload)
	} else {
		plaintext = payload // no session or pendingSession yet: ClientHello/HelloVerifyRequest, always epoch 0 plaintext
	}
	if err != nil {
		return err
	}

	switch header.ContentType {
	case protocol.ContentTypeHandshake:
		return c.handleHandshakeRecord(plaintext, deps)
	case protocol.ContentTypeChangeCipherSpec:
		return c.handleChangeCipherSpec(plaintext, deps)
	case protocol.ContentTypeAlert:
		return c.handleAlert(plaintext, deps)
	case protocol.ContentTypeApplicationData:
		if session == nil || !session.Established() {
			return ErrNotEstablished
		}
		deps.onApplicationData(c.PeerAddr, plaintext)
		return nil
	default:
		return ErrUnexpectedMessage
	}
}

func (c *Connection) handleChangeCipherSpec(body []byte, deps connectionDeps) error {
	c.mu.Lock()
	handshaker := c.handshaker
	c.mu.Unlock()
	if handshaker == nil || handshaker.pendingSession == nil || len(body) != 1 || body[0] != 1 {
		return ErrUnexpectedMessage
	}
	if !handshaker.expectCCS {
		return ErrUnexpectedMessage
	}
	handshaker.expectCCS = false
	handshaker.state = StateCCSReceived
	// The epoch bump belongs to the session under negotiation, not
	// c.session: that's still nil (or, for a resumption, still the prior
	// established session) until the Finished exchange completes.
	session := handshaker.pendingSession
	session.AdvanceEpoch(session.ReadEpoch()+1, false)

	deferred := handshaker.deferred
	handshaker.deferred = nil
	for _, d := range deferred {
		if err := c.handleRecord(d.header, d.payload, deps); err != nil {
			deps.logger.Debugf("dtls: error replaying deferred record from %s: %v", c.PeerAddr, err)
		}
	}
	return nil
}

func (c *Connection) handleAlert(body []byte, deps connectionDeps) error {
	var a alert.Alert
	if err := a.Unmarshal(body); err != nil {
		return err
	}
	deps.onAlert(c.PeerAddr, a)
	werr := &alertErr{Alert: a}
	if werr.isFatalOrCloseNotify() {
		c.mu.Lock()
		c.lifecycle = LifecycleTerminated
		c.session = nil
		c.handshaker = nil
		c.establishErr = werr
		c.establishedOnce.Do(func() { close(c.established) })
		c.mu.Unlock()
	}
	return nil
}

func (c *Connection) handleHandshakeRecord(plaintext []byte, deps connectionDeps) error {
	c.mu.Lock()
	handshaker := c.handshaker
	session := c.session
	c.mu.Unlock()

	var frag handshake.Fragment
	if err := frag.Unmarshal(plaintext); err != nil {
		return err
	}

	if handshaker == nil {
		// No handshake in progress: the only message worth recognizing is
		// a renegotiation attempt on an established session, which this
		// module always refuses without disturbing that session.
		if session != nil && session.Established() &&
			(frag.Header.Type == handshake.TypeClientHello || frag.Header.Type == handshake.TypeHelloRequest) {
			return c.sendNoRenegotiationAlert(deps)
		}
		return ErrUnexpectedMessage
	}

	isRetransmission, err := handshaker.pushFragment(frag, func(seq uint16, t handshake.Type, body []byte) error {
		return c.dispatchHandshakeMessage(handshaker, seq, t, body, deps)
	})
	if err != nil {
		return err
	}
	if isRetransmission {
		return deps.send(handshaker.lastFlightDatagrams)
	}
	return nil
}
