// Package alert implements the DTLS Alert content type: level and
// description codes, and their wire encoding.
//
// Grounded on pion-dtls's alert.go.
package alert

import (
	"fmt"

	"github.com/coapstack/dtls/pkg/protocol"
)

// Level is the severity of an Alert: Warning or Fatal. Fatal terminates
// the connection immediately, and so does CLOSE_NOTIFY, which is sent at
// Warning level; other Warning alerts (e.g. NO_RENEGOTIATION) do not.
//
// https://tools.ietf.org/html/rfc5246#section-7.2
type Level byte

// Alert levels.
const (
	Warning Level = 1
	Fatal   Level = 2
)

func (l Level) String() string {
	switch l {
	case Warning:
		return "Warning"
	case Fatal:
		return "Fatal"
	default:
		return fmt.Sprintf("Unknown(%d)", byte(l))
	}
}

// Description identifies the specific alert condition.
type Description byte

// Alert descriptions used by this module.
const (
	CloseNotify            Description = 0
	UnexpectedMessage      Description = 10
	BadRecordMac           Description = 20
	DecryptionFailed       Description = 21
	RecordOverflow         Description = 22
	HandshakeFailure       Description = 40
	BadCertificate         Description = 42
	UnsupportedCertificate Description = 43
	CertificateExpired     Description = 45
	CertificateUnknown     Description = 46
	IllegalParameter       Description = 47
	UnknownCA              Description = 48
	AccessDenied           Description = 49
	DecodeError            Description = 50
	DecryptError           Description = 51
	ProtocolVersion        Description = 70
	InsufficientSecurity   Description = 71
	InternalError          Description = 80
	UserCanceled           Description = 90
	NoRenegotiation        Description = 100
)

func (d Description) String() string {
	switch d {
	case CloseNotify:
		return "close_notify"
	case UnexpectedMessage:
		return "unexpected_message"
	case BadRecordMac:
		return "bad_record_mac"
	case DecryptionFailed:
		return "decryption_failed"
	case RecordOverflow:
		return "record_overflow"
	case HandshakeFailure:
		return "handshake_failure"
	case BadCertificate:
		return "bad_certificate"
	case UnsupportedCertificate:
		return "unsupported_certificate"
	case CertificateExpired:
		return "certificate_expired"
	case CertificateUnknown:
		return "certificate_unknown"
	case IllegalParameter:
		return "illegal_parameter"
	case UnknownCA:
		return "unknown_ca"
	case AccessDenied:
		return "access_denied"
	case DecodeError:
		return "decode_error"
	case DecryptError:
		return "decrypt_error"
	case ProtocolVersion:
		return "protocol_version"
	case InsufficientSecurity:
		return "insufficient_security"
	case InternalError:
		return "internal_error"
	case UserCanceled:
		return "user_canceled"
	case NoRenegotiation:
		return "no_renegotiation"
	default:
		return fmt.Sprintf("Unknown(%d)", byte(d))
	}
}

// Alert is the DTLS Alert protocol content.
type Alert struct {
	Level       Level
	Description Description
}

func (a Alert) Error() string {
	return fmt.Sprintf("alert: %s %s", a.Level, a.Description)
}

// Marshal encodes the alert to its 2-byte wire form.
func (a *Alert) Marshal() ([]byte, error) {
	return []byte{byte(a.Level), byte(a.Description)}, nil
}

// Unmarshal decodes a 2-byte alert.
func (a *Alert) Unmarshal(data []byte) error {
	if len(data) != 2 {
		return &protocol.DecodeError{Offset: 0, Reason: "alert must be exactly 2 bytes"}
	}
	a.Level = Level(data[0])
	a.Description = Description(data[1])
	return nil
}
