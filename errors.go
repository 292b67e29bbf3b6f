package dtls

import (
	"errors"
	"fmt"

	"github.com/coapstack/dtls/pkg/protocol/alert"
)

// FatalError is returned when the connection can no longer make progress
// and has been (or is about to be) torn down.
type FatalError struct{ Err error }

func (e *FatalError) Error() string { return fmt.Sprintf("dtls: fatal: %v", e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// TemporaryError is returned for conditions the caller may retry (e.g. a
// transiently full connection store).
type TemporaryError struct{ Err error }

func (e *TemporaryError) Error() string { return fmt.Sprintf("dtls: temporary: %v", e.Err) }
func (e *TemporaryError) Unwrap() error { return e.Err }
func (e *TemporaryError) Temporary() bool { return true }

// HandshakeError wraps a failure that occurred while negotiating a
// session; the handshake is abandoned but the transport layer (if any)
// survives.
type HandshakeError struct{ Err error }

func (e *HandshakeError) Error() string { return fmt.Sprintf("dtls: handshake: %v", e.Err) }
func (e *HandshakeError) Unwrap() error { return e.Err }

// Sentinel errors this module returns. Grounded on pion-dtls's errors.go
// taxonomy, narrowed to what this store/dispatcher architecture needs.
var (
	ErrConnectionClosed       = errors.New("dtls: connection closed")
	ErrStoreFull              = errors.New("dtls: connection store at capacity, no evictable entry")
	ErrHandshakeTimeout       = errors.New("dtls: handshake timed out after max retransmissions")
	ErrSeqExhausted           = errors.New("dtls: sequence number space exhausted, new handshake required")
	ErrCookieMismatch         = errors.New("dtls: cookie verification failed")
	ErrUnexpectedMessage      = errors.New("dtls: unexpected handshake message for current state")
	ErrNoCipherSuite          = errors.New("dtls: no mutually supported cipher suite")
	ErrPSKNotFound            = errors.New("dtls: no pre-shared key for identity")
	ErrCertificateInvalid     = errors.New("dtls: certificate chain rejected")
	ErrRenegotiationRefused  = errors.New("dtls: renegotiation refused")
	ErrNotEstablished         = errors.New("dtls: session is not yet established")
	ErrReplay                 = errors.New("dtls: record rejected by replay window")
	ErrEpochMismatch          = errors.New("dtls: record epoch does not match session read epoch")
	ErrFinishedMismatch       = errors.New("dtls: Finished verify_data mismatch")
)

// Config validation errors.
var (
	errNoCredentialStore = errors.New("dtls: WithCredentialStore is required")
	errEmptyCipherSuites = errors.New("dtls: WithCipherSuites requires at least one suite")
	errEmptyCurves       = errors.New("dtls: WithEllipticCurves requires at least one curve")
	errCertificateKeyNotECDSA = errors.New("dtls: own certificate's private key is not ECDSA")
)

// alertErr wraps an Alert so it satisfies the error interface while
// preserving the level/description the peer (or we) sent, and whether a
// close_notify- or fatal-level alert means the connection must tear down.
type alertErr struct {
	alert.Alert
	local bool // true if we generated this alert, false if the peer sent it
}

func (e *alertErr) Error() string {
	who := "peer"
	if e.local {
		who = "local"
	}
	return fmt.Sprintf("dtls: %s alert: %s", who, e.Alert.Error())
}

// isFatalOrCloseNotify reports whether receiving this alert should
// terminate the connection.
func (e *alertErr) isFatalOrCloseNotify() bool {
	return e.Level == alert.Fatal || e.Description == alert.CloseNotify
}
