package dtls

import "crypto/x509"

// CredentialStore is the external collaborator the handshaker calls into
// for key material: PSK lookup, certificate-chain verification, and the
// set of RPKs we trust without a chain. Implementations may block (e.g. a
// remote secrets service) — the handshake's retransmit timer is not tied
// to the task performing this lookup, so a slow store cannot stall
// retransmission.
type CredentialStore interface {
	// LookupPSK resolves a PSK identity to its secret. Returns
	// ErrPSKNotFound if identity is unknown.
	LookupPSK(identity []byte) (secret []byte, err error)

	// VerifyCertChain validates a peer certificate chain, optionally
	// against an expected hostname (empty if none is required).
	VerifyCertChain(chain []*x509.Certificate, hostname string) error

	// TrustedRPKs returns the raw public keys (RFC 7250) this store
	// accepts without a certificate chain.
	TrustedRPKs() [][]byte

	// OwnCertificate returns this endpoint's certificate chain and
	// private key, for suites that authenticate with ECDHE_ECDSA.
	OwnCertificate() (chain []*x509.Certificate, key any, err error)
}
