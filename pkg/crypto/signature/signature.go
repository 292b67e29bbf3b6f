// Package signature implements the ECDSA sign/verify operations used to
// authenticate ServerKeyExchange (ECDHE_ECDSA). Client certificates are
// never requested, so no CertificateVerify is signed or verified with it.
//
// Grounded on pion-dtls's crypto.go (generateKeySignature/verifyKeySignature),
// narrowed to the ECDSA-only subset this module calls for (RPK/X.509 auth).
package signature

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"errors"
)

var (
	errNotECDSAKey = errors.New("signature: not an ECDSA key")
	errMismatch    = errors.New("signature: verify_data/signature mismatch")
)

// Sign produces an ASN.1 ECDSA signature over SHA-256(message) using signer.
func Sign(signer *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	hashed := sha256.Sum256(message)
	return ecdsa.SignASN1(rand.Reader, signer, hashed[:])
}

// Verify checks an ASN.1 ECDSA signature over SHA-256(message) against the
// leaf certificate's public key.
func Verify(cert *x509.Certificate, message, sig []byte) error {
	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return errNotECDSAKey
	}

	hashed := sha256.Sum256(message)
	if !ecdsa.VerifyASN1(pub, hashed[:], sig) {
		return errMismatch
	}
	return nil
}
