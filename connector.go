package dtls

import (
	"context"
	"net"
	"sync"

	"github.com/coapstack/dtls/internal/workerpool"
	"github.com/coapstack/dtls/pkg/protocol"
	"github.com/coapstack/dtls/pkg/protocol/alert"
	"github.com/coapstack/dtls/pkg/protocol/handshake"
	"github.com/coapstack/dtls/pkg/protocol/record"
)

// Connector is the UDP pump: it owns the socket, one receiver goroutine,
// the shared worker pool, and the connection store every inbound datagram
// is dispatched through.
//
// Grounded on pion-dtls's conn.go read loop, regrown around a shared
// store/dispatcher instead of pion-dtls's one-loop-per-Conn design.
type Connector struct {
	socket UdpSocket
	cfg    *config
	store  *connectionStore
	pool   *workerpool.Pool

	cookieGen         *cookieGenerator
	cookieRotateTimer TimerHandle

	mu              sync.Mutex
	rawDataReceiver func(net.Addr, []byte)
	alertHandler    func(net.Addr, alert.Alert)
	onSent          func(peer net.Addr, err error)
	onError         func(peer net.Addr, err error)
	onConnect       func(peer net.Addr)
	connectFired    map[string]bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewConnector builds a Connector over socket, applying opts on top of
// its built-in defaults. It does not start the receive loop; call Start.
func NewConnector(socket UdpSocket, opts ...Option) (*Connector, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	cookieGen, err := newCookieGenerator()
	if err != nil {
		return nil, err
	}
	pool := workerpool.New(cfg.workerPoolSize, cfg.workerQueueDepth)
	return &Connector{
		socket:       socket,
		cfg:          cfg,
		store:        newConnectionStore(cfg.storeCapacity, pool),
		pool:         pool,
		cookieGen:    cookieGen,
		connectFired: make(map[string]bool),
	}, nil
}

// Start launches the receiver goroutine and the cookie-secret rotation
// timer.
func (c *Connector) Start() error {
	c.mu.Lock()
	if c.stopCh != nil {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	c.stopCh = make(chan struct{})
	stop := c.stopCh
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receiveLoop(stop)
	c.cookieRotateTimer = c.cfg.timers.ScheduleAfter(c.cfg.cookieSecretLifetime, c.rotateCookie)
	return nil
}

func (c *Connector) rotateCookie() {
	_ = c.cookieGen.Rotate()
	c.mu.Lock()
	running := c.stopCh != nil
	c.mu.Unlock()
	if running {
		c.cookieRotateTimer = c.cfg.timers.ScheduleAfter(c.cfg.cookieSecretLifetime, c.rotateCookie)
	}
}

// Stop closes the socket and drains the worker pool within
// workerpool.DefaultDrainTimeout (sooner if ctx ends first), preserving
// the connection store so a subsequent Restart reuses established sessions.
func (c *Connector) Stop(ctx context.Context) error {
	c.mu.Lock()
	stop := c.stopCh
	c.stopCh = nil
	c.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	if c.cookieRotateTimer != nil {
		c.cookieRotateTimer.Cancel()
	}
	_ = c.socket.Close()
	c.wg.Wait()
	ctx, cancel := context.WithTimeout(ctx, workerpool.DefaultDrainTimeout)
	defer cancel()
	return c.pool.Stop(ctx)
}

// Restart reopens the socket on the same local address (or lets the OS
// pick a new port if the old one is unavailable) and resumes the receive
// loop, keeping every entry the connection store already held.
func (c *Connector) Restart() error {
	laddr, ok := c.socket.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ErrConnectionClosed
	}
	socket, err := ListenUDP(laddr)
	if err != nil {
		socket, err = ListenUDP(nil)
		if err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.socket = socket
	c.mu.Unlock()
	return c.Start()
}

// Destroy stops the Connector and clears the connection store, discarding
// every session.
func (c *Connector) Destroy(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil {
		return err
	}
	c.store.clear()
	return nil
}

// SetRawDataReceiver installs the callback invoked with decrypted
// application data from an established session.
func (c *Connector) SetRawDataReceiver(handler func(net.Addr, []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rawDataReceiver = handler
}

// SetAlertHandler installs the callback invoked whenever an Alert record
// is received, fatal or not.
func (c *Connector) SetAlertHandler(handler func(net.Addr, alert.Alert)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alertHandler = handler
}

// SetOnSent, SetOnError and SetOnConnect install the surface callbacks
// on_sent, on_error and on_connect (fired once, on the first send that
// triggers a new handshake).
func (c *Connector) SetOnSent(fn func(peer net.Addr, err error))    { c.mu.Lock(); c.onSent = fn; c.mu.Unlock() }
func (c *Connector) SetOnError(fn func(peer net.Addr, err error))   { c.mu.Lock(); c.onError = fn; c.mu.Unlock() }
func (c *Connector) SetOnConnect(fn func(peer net.Addr))            { c.mu.Lock(); c.onConnect = fn; c.mu.Unlock() }

// GetMaximumTransmissionUnit returns the PMTU this module assumes absent
// a live probe (default IPv4 1280).
func (c *Connector) GetMaximumTransmissionUnit() int { return defaultMTU }

// GetMaximumFragmentLength returns how much handshake body a single
// fragment to peer may carry.
func (c *Connector) GetMaximumFragmentLength(peer net.Addr) int { return maxFragmentPayload }

func (c *Connector) receiveLoop(stop chan struct{}) {
	defer c.wg.Done()
	for {
		select {
		case <-stop:
			return
		default:
		}
		addr, buf, err := c.socket.Recv()
		if err != nil {
			select {
			case <-stop:
				return
			default:
			}
			c.cfg.logger.Debugf("dtls: receive error: %v", err)
			continue
		}
		c.handleInbound(addr, buf)
	}
}

// handleInbound implements the inbound datagram path, including the
// stateless cookie exchange that precedes any Connection existing.
func (c *Connector) handleInbound(addr net.Addr, buf []byte) {
	records, err := record.UnpackDatagram(buf)
	if err != nil || len(records) == 0 {
		c.cfg.logger.Debugf("dtls: malformed datagram from %s: %v", addr, err)
		return
	}

	if _, exists := c.store.Get(addr); !exists {
		if handled := c.tryStatelessClientHello(addr, records[0]); handled {
			return
		}
	}

	conn, created, err := c.store.GetOrCreate(addr, c.cfg.clock, c.cfg.connectionIdleThreshold.Nanoseconds())
	if err != nil {
		c.cfg.logger.Debugf("dtls: connection store at capacity, dropping handshake attempt from %s", addr)
		return
	}
	if created || conn.IsGarbage() {
		conn.beginHandshake(RoleServer, c.cfg.retransmitTimeout)
	}
	conn.touch(c.cfg.clock)
	c.store.Touch(addr)

	deps := c.connectionDepsFor(conn)
	conn.Submit(func() {
		if err := conn.handleDatagram(buf, deps); err != nil {
			c.cfg.logger.Debugf("dtls: error handling datagram from %s: %v", addr, err)
		}
	})
}

// tryStatelessClientHello answers a cookie-less or invalid-cookie
// ClientHello with HelloVerifyRequest directly, without creating a
// Connection. It reports whether it consumed the datagram.
func (c *Connector) tryStatelessClientHello(addr net.Addr, rawRecord []byte) bool {
	var header record.Header
	if err := header.Unmarshal(rawRecord); err != nil || header.ContentType != protocol.ContentTypeHandshake || header.Epoch != 0 {
		return false
	}

	var frag handshake.Fragment
	if err := frag.Unmarshal(rawRecord[record.HeaderSize:]); err != nil {
		return false
	}
	if frag.Header.Type != handshake.TypeClientHello || frag.Header.FragmentOffset != 0 || frag.Header.FragmentLength != frag.Header.Length {
		return false
	}

	ch := &handshake.ClientHello{}
	if err := ch.Unmarshal(frag.Data); err != nil {
		return false
	}

	params := clientHelloCookieParams(ch)
	if len(ch.Cookie) > 0 && c.cookieGen.Verify(ch.Cookie, addr, params) {
		return false // valid cookie: fall through to normal Connection handling
	}

	hvr, _ := buildHelloVerifyRequest(c.cookieGen, addr, params)
	body, err := hvr.Marshal()
	if err != nil {
		return true
	}
	wirePayload := append(headerForWholeMessage(handshake.TypeHelloVerifyRequest, 0, body), body...)

	skeleton := NewSession(addr, 0, false)
	wire, err := sealRecord(skeleton, protocol.ContentTypeHandshake, wirePayload)
	if err != nil {
		return true
	}
	if err := c.socket.SendTo(addr, wire); err != nil {
		c.cfg.logger.Debugf("dtls: failed to send HelloVerifyRequest to %s: %v", addr, err)
	}
	return true
}

func (c *Connector) connectionDepsFor(conn *Connection) connectionDeps {
	return connectionDeps{
		credentials:        c.cfg.credentials,
		suites:             c.cfg.cipherSuites,
		curves:             c.cfg.curves,
		timers:             c.cfg.timers,
		logger:             c.cfg.logger,
		maxRetransmissions: c.cfg.maxRetransmissions,
		pskIdentityHint:    c.cfg.pskIdentityHint,
		send: func(datagrams [][]byte) error {
			return c.sendDatagrams(conn.PeerAddr, datagrams)
		},
		onAlert: func(peer net.Addr, a alert.Alert) {
			if (&alertErr{Alert: a}).isFatalOrCloseNotify() {
				c.store.Remove(peer)
			}
			c.deliverAlert(peer, a)
		},
		onApplicationData: c.deliverApplicationData,
	}
}

func (c *Connector) sendDatagrams(peer net.Addr, datagrams [][]byte) error {
	for _, d := range datagrams {
		if err := c.socket.SendTo(peer, d); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connector) deliverApplicationData(peer net.Addr, data []byte) {
	c.mu.Lock()
	recv := c.rawDataReceiver
	c.mu.Unlock()
	if recv != nil {
		recv(peer, data)
	}
}

func (c *Connector) deliverAlert(peer net.Addr, a alert.Alert) {
	c.mu.Lock()
	handler := c.alertHandler
	c.mu.Unlock()
	if handler != nil {
		handler(peer, a)
	}
}

func (c *Connector) fireOnConnect(peer net.Addr) {
	c.mu.Lock()
	key := peer.String()
	already := c.connectFired[key]
	c.connectFired[key] = true
	fn := c.onConnect
	c.mu.Unlock()
	if !already && fn != nil {
		fn(peer)
	}
}

func (c *Connector) fireOnSent(peer net.Addr, err error) {
	c.mu.Lock()
	sent, failed := c.onSent, c.onError
	c.mu.Unlock()
	if err != nil && failed != nil {
		failed(peer, err)
		return
	}
	if err == nil && sent != nil {
		sent(peer, nil)
	}
}

// Send is the outbound path: an established session encrypts and sends
// immediately; otherwise a handshake is kicked off — on the first send to
// peer, or on a later one if peer's prior handshake failed and left its
// Connection IsGarbage() — and data is flushed once it completes.
// callback observes the eventual outcome; it may be nil.
func (c *Connector) Send(data []byte, peer net.Addr, callback func(error)) error {
	conn, created, err := c.store.GetOrCreate(peer, c.cfg.clock, c.cfg.connectionIdleThreshold.Nanoseconds())
	if err != nil {
		if callback != nil {
			callback(err)
		}
		return err
	}

	if session := conn.Session(); session != nil && session.Established() {
		return c.sendOverSession(session, peer, data, callback)
	}

	if created || conn.IsGarbage() {
		c.fireOnConnect(peer)
		h := conn.beginHandshake(RoleClient, c.cfg.retransmitTimeout)
		deps := c.connectionDepsFor(conn)
		conn.Submit(func() {
			if err := c.startClientHandshake(conn, h, deps); err != nil {
				conn.failHandshake(err)
			}
		})
	}

	// Fetched after any beginHandshake above so a retry following a prior
	// failure waits on this attempt's channel, not a stale closed one.
	establishedCh := conn.establishedChan()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-establishedCh
		conn.mu.Lock()
		session := conn.session
		establishErr := conn.establishErr
		conn.mu.Unlock()
		if session == nil {
			if callback != nil {
				callback(establishErr)
			}
			return
		}
		_ = c.sendOverSession(session, peer, data, callback)
	}()
	return nil
}

func (c *Connector) sendOverSession(session *Session, peer net.Addr, data []byte, callback func(error)) error {
	wire, err := sealRecord(session, protocol.ContentTypeApplicationData, data)
	if err != nil {
		c.fireOnSent(peer, err)
		if callback != nil {
			callback(err)
		}
		return err
	}
	if err := c.socket.SendTo(peer, wire); err != nil {
		c.fireOnSent(peer, err)
		if callback != nil {
			callback(err)
		}
		return err
	}
	c.fireOnSent(peer, nil)
	if callback != nil {
		callback(nil)
	}
	return nil
}

// startClientHandshake sends Flight 1: a cookie-less ClientHello.
func (c *Connector) startClientHandshake(conn *Connection, h *Handshaker, deps connectionDeps) error {
	ch, err := h.buildClientHello(c.cfg.cipherSuites, c.cfg.curves)
	if err != nil {
		return err
	}
	seq := h.nextMessageSeq()
	body, err := ch.Marshal()
	if err != nil {
		return err
	}
	skeleton := NewSession(conn.PeerAddr, 0, true)
	datagrams, err := packFlightDatagrams(skeleton, fragmentHandshakeBody(handshake.TypeClientHello, seq, body))
	if err != nil {
		return err
	}
	h.sendFlight(datagrams, c.cfg.timers, c.cfg.maxRetransmissions, deps.send)
	return deps.send(datagrams)
}
