package ciphersuite

import (
	"crypto/sha256"
	"errors"
	"hash"

	"github.com/coapstack/dtls/pkg/crypto/prf"
)

var (
	errNotInitialized = errors.New("ciphersuite: suite used before Init")
	errRecordTooShort = errors.New("ciphersuite: record shorter than explicit nonce plus tag")
)

// CipherSuite wraps one negotiated (key exchange, bulk cipher) pairing.
// A CipherSuite value is created per connection, keyed by master secret and
// the negotiated randoms, then used for the lifetime of that epoch's
// traffic keys.
//
// Grounded on pion-dtls's cipherSuite interface (cipher_suite.go) and its
// concrete cipherSuiteAes128Ccm / cipherSuiteTLSEcdheEcdsaWithAes128GcmSha256
// implementations.
type CipherSuite interface {
	ID() ID
	KeyExchangeAlgorithm() KeyExchangeAlgorithm

	// Init derives this suite's traffic keys from the master secret and
	// handshake randoms. Must be called exactly once before Encrypt/Decrypt.
	Init(masterSecret, clientRandom, serverRandom []byte, isClient bool) error

	// Encrypt seals a plaintext record body under the given header's
	// (epoch, sequence_number), returning the on-wire payload (ciphertext
	// plus any explicit IV/tag the scheme adds).
	Encrypt(header RecordParams, plaintext []byte) ([]byte, error)

	// Decrypt opens an on-wire record body, returning the plaintext.
	Decrypt(header RecordParams, ciphertext []byte) ([]byte, error)
}

// RecordParams is the subset of a record header a CipherSuite needs to
// build its AEAD nonce / CBC additional data: which epoch and sequence
// number the record carries, and which content type it wraps.
type RecordParams struct {
	Epoch          uint16
	SequenceNumber uint64
	ContentType    byte
	Version        [2]byte
}

func newHash() hash.Hash { return sha256.New() }

// New constructs the CipherSuite implementation for id. The caller must
// have already confirmed IsSupported(id).
func New(id ID) CipherSuite {
	switch id {
	case TLS_PSK_WITH_AES_128_CCM_8:
		return &ccm8Suite{id: id, ka: KeyExchangePSK}
	case TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8:
		return &ccm8Suite{id: id, ka: KeyExchangeECDHEECDSA}
	case TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256:
		return &gcmSuite{id: id, ka: KeyExchangeECDHEECDSA}
	case TLS_PSK_WITH_AES_128_CBC_SHA256:
		return &cbcSuite{id: id, ka: KeyExchangePSK}
	case TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256:
		return &cbcSuite{id: id, ka: KeyExchangeECDHEPSK}
	default:
		return nil
	}
}

// additionalData builds the thirteen-byte AEAD additional authenticated
// data TLS 1.2 AEAD suites use: seq_num(8) || type(1) || version(2) || length(2).
//
// Grounded on pion-dtls's crypto.go generateAEADAdditionalData.
func additionalData(p RecordParams, payloadLen int) []byte {
	ad := make([]byte, 13)
	ad[0] = byte(p.Epoch >> 8)
	ad[1] = byte(p.Epoch)
	seq := p.SequenceNumber
	for i := 0; i < 6; i++ {
		ad[2+i] = byte(seq >> (8 * (5 - i)))
	}
	ad[8] = p.ContentType
	ad[9] = p.Version[0]
	ad[10] = p.Version[1]
	ad[11] = byte(payloadLen >> 8)
	ad[12] = byte(payloadLen)
	return ad
}

func deriveKeys(masterSecret, clientRandom, serverRandom []byte, macLen, keyLen, ivLen int) (*prf.EncryptionKeys, error) {
	return prf.GenerateEncryptionKeys(masterSecret, clientRandom, serverRandom, macLen, keyLen, ivLen, newHash)
}
