package dtls

import "github.com/coapstack/dtls/pkg/protocol/alert"

// noRenegotiationAlert builds the warning-level alert this module sends
// whenever a peer attempts renegotiation, which it never honors.
func noRenegotiationAlert() alert.Alert {
	return alert.Alert{Level: alert.Warning, Description: alert.NoRenegotiation}
}

// closeNotifyAlert builds the warning-level alert a peer sends to end a
// session gracefully.
func closeNotifyAlert() alert.Alert {
	return alert.Alert{Level: alert.Warning, Description: alert.CloseNotify}
}

// fatalAlertFor maps an internal handshake failure to the Alert description
// a peer should be told about it, for the failures that warrant telling
// the peer anything at all rather than silently dropping (cookie mismatch
// and store-full are deliberately silent).
func fatalAlertFor(err error) (alert.Alert, bool) {
	switch err {
	case ErrNoCipherSuite:
		return alert.Alert{Level: alert.Fatal, Description: alert.HandshakeFailure}, true
	case ErrCertificateInvalid:
		return alert.Alert{Level: alert.Fatal, Description: alert.BadCertificate}, true
	case ErrFinishedMismatch:
		return alert.Alert{Level: alert.Fatal, Description: alert.DecryptError}, true
	default:
		return alert.Alert{}, false
	}
}
