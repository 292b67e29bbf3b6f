// Package ciphersuite implements the DTLS 1.2 cipher suites this module
// negotiates: PSK, ECDHE-PSK and ECDHE-ECDSA key exchange, each paired
// with an AEAD (AES-CCM-8, AES-GCM) or MAC-then-encrypt (AES-CBC+HMAC-SHA256)
// bulk cipher.
//
// Grounded on pion-dtls's cipher_suite.go / cipher_suite_tls_*.go split.
package ciphersuite

import "fmt"

// ID is the two-byte cipher suite identifier negotiated in
// ClientHello/ServerHello.
//
// https://www.iana.org/assignments/tls-parameters/tls-parameters.xml
type ID uint16

// IDs this module supports. RSA and anonymous key exchange, and anything
// DTLS-1.3-only, are intentionally absent.
const (
	TLS_PSK_WITH_AES_128_CCM_8               ID = 0xc0a8
	TLS_PSK_WITH_AES_128_CBC_SHA256          ID = 0x00ae
	TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256    ID = 0xc037
	TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8       ID = 0xc0ae
	TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256  ID = 0xc02b
)

func (id ID) String() string {
	switch id {
	case TLS_PSK_WITH_AES_128_CCM_8:
		return "TLS_PSK_WITH_AES_128_CCM_8"
	case TLS_PSK_WITH_AES_128_CBC_SHA256:
		return "TLS_PSK_WITH_AES_128_CBC_SHA256"
	case TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256:
		return "TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256"
	case TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8:
		return "TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8"
	case TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256:
		return "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256"
	default:
		return fmt.Sprintf("Unknown(0x%04x)", uint16(id))
	}
}

// KeyExchangeAlgorithm identifies how the premaster secret is established.
type KeyExchangeAlgorithm uint8

// Key exchange algorithms this module implements.
const (
	KeyExchangePSK KeyExchangeAlgorithm = iota
	KeyExchangeECDHEPSK
	KeyExchangeECDHEECDSA
)

// KeyExchangeAlgorithm returns the key exchange algorithm for id. The
// caller is expected to have already validated id is one we support.
func (id ID) KeyExchangeAlgorithm() KeyExchangeAlgorithm {
	switch id {
	case TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256:
		return KeyExchangeECDHEPSK
	case TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8, TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256:
		return KeyExchangeECDHEECDSA
	default:
		return KeyExchangePSK
	}
}

// IsPSK reports whether id uses a pre-shared key (plain or ECDHE-PSK).
func (id ID) IsPSK() bool {
	ka := id.KeyExchangeAlgorithm()
	return ka == KeyExchangePSK || ka == KeyExchangeECDHEPSK
}

// IsCertificateBased reports whether id authenticates via a certificate
// (ECDHE-ECDSA).
func (id ID) IsCertificateBased() bool {
	return id.KeyExchangeAlgorithm() == KeyExchangeECDHEECDSA
}

// Supported lists every cipher suite ID this module can negotiate, in
// preference order (most preferred first).
func Supported() []ID {
	return []ID{
		TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8,
		TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256,
		TLS_PSK_WITH_AES_128_CCM_8,
		TLS_PSK_WITH_AES_128_CBC_SHA256,
	}
}

// IsSupported reports whether id is one of Supported().
func IsSupported(id ID) bool {
	for _, s := range Supported() {
		if s == id {
			return true
		}
	}
	return false
}
