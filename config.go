package dtls

import (
	"time"

	"github.com/pion/logging"

	"github.com/coapstack/dtls/pkg/crypto/ciphersuite"
	"github.com/coapstack/dtls/pkg/crypto/elliptic"
)

// Defaults applied when the caller doesn't override them via an Option.
const (
	defaultRetransmitTimeout       = 500 * time.Millisecond
	defaultMaxRetransmissions      = 2
	defaultConnectionIdleThreshold = 60 * time.Second
	defaultCookieSecretLifetime    = 10 * time.Minute
	defaultStoreCapacity           = 1024
	defaultWorkerPoolSize          = 32
	defaultWorkerQueueDepth        = 256
)

// config is the resolved, immutable configuration a Connector is built
// from. Construct it with newConfig plus a list of Option values.
//
// Grounded on pion-dtls's options.go functional-options pattern
// (dtlsConfig + With* constructors), adapted from a per-Conn config to a
// per-Connector one since this module dispatches many peers through one
// store rather than one Conn per peer.
type config struct {
	cipherSuites []ciphersuite.ID
	curves       []elliptic.Curve

	credentials CredentialStore
	clock       MonotonicClock
	timers      TimerService
	logger      logging.LeveledLogger

	retransmitTimeout       time.Duration
	maxRetransmissions      int
	connectionIdleThreshold time.Duration
	cookieSecretLifetime    time.Duration

	storeCapacity    int
	workerPoolSize   int
	workerQueueDepth int

	pskIdentityHint []byte
}

func newConfig(opts ...Option) (*config, error) {
	c := &config{
		cipherSuites:            ciphersuite.Supported(),
		curves:                  elliptic.Supported(),
		clock:                   SystemClock{},
		timers:                  GoTimerService{},
		logger:                  logging.NewDefaultLoggerFactory().NewLogger("dtls"),
		retransmitTimeout:       defaultRetransmitTimeout,
		maxRetransmissions:      defaultMaxRetransmissions,
		connectionIdleThreshold: defaultConnectionIdleThreshold,
		cookieSecretLifetime:    defaultCookieSecretLifetime,
		storeCapacity:           defaultStoreCapacity,
		workerPoolSize:          defaultWorkerPoolSize,
		workerQueueDepth:        defaultWorkerQueueDepth,
	}
	for _, opt := range opts {
		if err := opt.apply(c); err != nil {
			return nil, err
		}
	}
	if c.credentials == nil {
		return nil, errNoCredentialStore
	}
	return c, nil
}

// Option configures a Connector.
type Option interface {
	apply(*config) error
}

type optionFunc func(*config) error

func (f optionFunc) apply(c *config) error { return f(c) }

// WithCredentialStore supplies the PSK/certificate collaborator the
// handshaker consults for key material. Required.
func WithCredentialStore(store CredentialStore) Option {
	return optionFunc(func(c *config) error {
		c.credentials = store
		return nil
	})
}

// WithCipherSuites restricts negotiation to the given suites, in
// preference order. Defaults to ciphersuite.Supported().
func WithCipherSuites(suites ...ciphersuite.ID) Option {
	return optionFunc(func(c *config) error {
		if len(suites) == 0 {
			return errEmptyCipherSuites
		}
		c.cipherSuites = append([]ciphersuite.ID{}, suites...)
		return nil
	})
}

// WithEllipticCurves restricts ECDHE negotiation to the given named
// curves. Defaults to elliptic.Supported().
func WithEllipticCurves(curves ...elliptic.Curve) Option {
	return optionFunc(func(c *config) error {
		if len(curves) == 0 {
			return errEmptyCurves
		}
		c.curves = append([]elliptic.Curve{}, curves...)
		return nil
	})
}

// WithPSKIdentityHint sets the identity hint a server advertises in
// ServerKeyExchange for PSK suites.
func WithPSKIdentityHint(hint []byte) Option {
	return optionFunc(func(c *config) error {
		c.pskIdentityHint = append([]byte{}, hint...)
		return nil
	})
}

// WithLoggerFactory sets the pion/logging factory used for this
// Connector's logger and every Connection's.
func WithLoggerFactory(factory logging.LoggerFactory) Option {
	return optionFunc(func(c *config) error {
		c.logger = factory.NewLogger("dtls")
		return nil
	})
}

// WithClock overrides the MonotonicClock, primarily for deterministic
// tests of idle-eviction and retransmission timing.
func WithClock(clock MonotonicClock) Option {
	return optionFunc(func(c *config) error {
		c.clock = clock
		return nil
	})
}

// WithTimerService overrides the TimerService, primarily for
// deterministic tests of retransmission scheduling.
func WithTimerService(timers TimerService) Option {
	return optionFunc(func(c *config) error {
		c.timers = timers
		return nil
	})
}

// WithRetransmitTimeout sets the initial flight retransmission interval.
// Defaults to 500ms, doubling on each retry up to MaxRetransmissions.
func WithRetransmitTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) error {
		c.retransmitTimeout = d
		return nil
	})
}

// WithMaxRetransmissions caps how many times a flight is resent before
// the handshake fails with ErrHandshakeTimeout.
func WithMaxRetransmissions(n int) Option {
	return optionFunc(func(c *config) error {
		c.maxRetransmissions = n
		return nil
	})
}

// WithConnectionIdleThreshold sets how long a Connection may sit without
// activity before it becomes eligible for LRU eviction.
func WithConnectionIdleThreshold(d time.Duration) Option {
	return optionFunc(func(c *config) error {
		c.connectionIdleThreshold = d
		return nil
	})
}

// WithCookieSecretLifetime sets the rotation interval for the server's
// stateless cookie HMAC secret.
func WithCookieSecretLifetime(d time.Duration) Option {
	return optionFunc(func(c *config) error {
		c.cookieSecretLifetime = d
		return nil
	})
}

// WithStoreCapacity bounds how many Connections the store holds at once
// (e.g. small for clients, large for servers).
func WithStoreCapacity(n int) Option {
	return optionFunc(func(c *config) error {
		c.storeCapacity = n
		return nil
	})
}

// WithWorkerPool sizes the shared worker pool backing every Connection's
// serial executor.
func WithWorkerPool(workers, queueDepth int) Option {
	return optionFunc(func(c *config) error {
		c.workerPoolSize = workers
		c.workerQueueDepth = queueDepth
		return nil
	})
}
