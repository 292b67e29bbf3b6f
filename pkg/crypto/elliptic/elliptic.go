// Package elliptic provides the ECDHE keypair generation and shared-secret
// derivation this module's ECDHE_PSK and ECDHE_ECDSA suites need. Named
// curves only; explicit-prime/char2 curves are out of scope.
//
// Grounded on pion-dtls's pkg/crypto/elliptic/elliptic.go.
package elliptic

import (
	"crypto/ecdh"
	"crypto/rand"
	"errors"
)

var errInvalidNamedCurve = errors.New("elliptic: invalid or unsupported named curve")

// Curve is the IANA NamedCurve identifier.
//
// https://www.iana.org/assignments/tls-parameters/tls-parameters.xml#tls-parameters-8
type Curve uint16

// Curves this module negotiates.
const (
	P256   Curve = 23
	X25519 Curve = 29
)

func (c Curve) toECDH() (ecdh.Curve, error) {
	switch c {
	case P256:
		return ecdh.P256(), nil
	case X25519:
		return ecdh.X25519(), nil
	default:
		return nil, errInvalidNamedCurve
	}
}

// Keypair is an ephemeral ECDHE keypair together with the curve it was
// generated on.
type Keypair struct {
	Curve      Curve
	PrivateKey *ecdh.PrivateKey
	PublicKey  []byte // uncompressed point (P-256) or 32-byte u-coordinate (X25519)
}

// Supported returns every curve this module can negotiate, most
// preferred first.
func Supported() []Curve {
	return []Curve{X25519, P256}
}

// IsSupported reports whether curve is one this module implements.
func IsSupported(curve Curve) bool {
	for _, c := range Supported() {
		if c == curve {
			return true
		}
	}
	return false
}

// GenerateKeypair creates a fresh ephemeral keypair on curve.
func GenerateKeypair(curve Curve) (*Keypair, error) {
	ec, err := curve.toECDH()
	if err != nil {
		return nil, err
	}
	priv, err := ec.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Keypair{
		Curve:      curve,
		PrivateKey: priv,
		PublicKey:  priv.PublicKey().Bytes(),
	}, nil
}

// Derive computes the ECDH shared secret (the pre-master secret's ECDHE
// contribution) given our private key and the peer's encoded public point.
func Derive(curve Curve, privateKey *ecdh.PrivateKey, peerPublicKey []byte) ([]byte, error) {
	ec, err := curve.toECDH()
	if err != nil {
		return nil, err
	}
	peerKey, err := ec.NewPublicKey(peerPublicKey)
	if err != nil {
		return nil, err
	}
	return privateKey.ECDH(peerKey)
}
