package ciphersuite

import (
	"crypto/aes"

	"github.com/coapstack/dtls/pkg/crypto/ccm"
)

const (
	ccmKeyLen      = 16
	ccmSaltLen     = 4
	ccmNonceLen    = 12
	ccmExplicitLen = 8 // epoch(2) || sequence_number(6), sent on the wire
	ccmTagLen      = 8 // CCM-8, RFC 6655
)

// ccm8Suite implements the AES-128-CCM-8 AEAD suites (PSK and ECDHE-ECDSA
// key exchange; RFC 6655 / RFC 7251).
//
// Grounded on pion-dtls's crypto_ccm.go and pkg/crypto/ccm, adapted to this
// module's hand-rolled ccm.NewCCM since the stdlib has no CCM primitive.
type ccm8Suite struct {
	id ID
	ka KeyExchangeAlgorithm

	localWriteKey, localWriteSalt   []byte
	remoteWriteKey, remoteWriteSalt []byte

	localAEAD, remoteAEAD interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

func (s *ccm8Suite) ID() ID                                      { return s.id }
func (s *ccm8Suite) KeyExchangeAlgorithm() KeyExchangeAlgorithm   { return s.ka }

func (s *ccm8Suite) Init(masterSecret, clientRandom, serverRandom []byte, isClient bool) error {
	keys, err := deriveKeys(masterSecret, clientRandom, serverRandom, 0, ccmKeyLen, ccmSaltLen)
	if err != nil {
		return err
	}

	var clientAEAD, serverAEAD interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
	clientBlock, err := aes.NewCipher(keys.ClientWriteKey)
	if err != nil {
		return err
	}
	clientAEAD, err = ccm.NewCCM(clientBlock, ccmTagLen, ccmNonceLen)
	if err != nil {
		return err
	}
	serverBlock, err := aes.NewCipher(keys.ServerWriteKey)
	if err != nil {
		return err
	}
	serverAEAD, err = ccm.NewCCM(serverBlock, ccmTagLen, ccmNonceLen)
	if err != nil {
		return err
	}

	if isClient {
		s.localWriteKey, s.localWriteSalt = keys.ClientWriteKey, keys.ClientWriteIV
		s.remoteWriteKey, s.remoteWriteSalt = keys.ServerWriteKey, keys.ServerWriteIV
		s.localAEAD, s.remoteAEAD = clientAEAD, serverAEAD
	} else {
		s.localWriteKey, s.localWriteSalt = keys.ServerWriteKey, keys.ServerWriteIV
		s.remoteWriteKey, s.remoteWriteSalt = keys.ClientWriteKey, keys.ClientWriteIV
		s.localAEAD, s.remoteAEAD = serverAEAD, clientAEAD
	}
	return nil
}

func buildNonce(salt []byte, p RecordParams) []byte {
	nonce := make([]byte, ccmSaltLen+ccmExplicitLen)
	copy(nonce, salt)
	nonce[ccmSaltLen] = byte(p.Epoch >> 8)
	nonce[ccmSaltLen+1] = byte(p.Epoch)
	seq := p.SequenceNumber
	for i := 0; i < 6; i++ {
		nonce[ccmSaltLen+2+i] = byte(seq >> (8 * (5 - i)))
	}
	return nonce
}

func (s *ccm8Suite) Encrypt(header RecordParams, plaintext []byte) ([]byte, error) {
	if s.localAEAD == nil {
		return nil, errNotInitialized
	}
	nonce := buildNonce(s.localWriteSalt, header)
	ad := additionalData(header, len(plaintext))
	sealed := s.localAEAD.Seal(nil, nonce, plaintext, ad)

	out := make([]byte, ccmExplicitLen+len(sealed))
	copy(out, nonce[ccmSaltLen:])
	copy(out[ccmExplicitLen:], sealed)
	return out, nil
}

func (s *ccm8Suite) Decrypt(header RecordParams, ciphertext []byte) ([]byte, error) {
	if s.remoteAEAD == nil {
		return nil, errNotInitialized
	}
	if len(ciphertext) < ccmExplicitLen+ccmTagLen {
		return nil, errRecordTooShort
	}
	nonce := make([]byte, ccmSaltLen+ccmExplicitLen)
	copy(nonce, s.remoteWriteSalt)
	copy(nonce[ccmSaltLen:], ciphertext[:ccmExplicitLen])

	sealed := ciphertext[ccmExplicitLen:]
	ad := additionalData(header, len(sealed)-ccmTagLen)
	return s.remoteAEAD.Open(nil, nonce, sealed, ad)
}
