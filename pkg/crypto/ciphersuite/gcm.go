package ciphersuite

import (
	"crypto/aes"
	"crypto/cipher"
)

const (
	gcmKeyLen      = 16
	gcmSaltLen     = 4
	gcmNonceLen    = 12
	gcmExplicitLen = 8
)

// gcmSuite implements TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256 using the
// standard library's AES-GCM, following the same explicit-nonce wire
// convention as ccm8Suite.
//
// Grounded on pion-dtls's crypto_gcm.go.
type gcmSuite struct {
	id ID
	ka KeyExchangeAlgorithm

	localWriteSalt, remoteWriteSalt []byte
	localAEAD, remoteAEAD          cipher.AEAD
}

func (s *gcmSuite) ID() ID                                    { return s.id }
func (s *gcmSuite) KeyExchangeAlgorithm() KeyExchangeAlgorithm { return s.ka }

func (s *gcmSuite) Init(masterSecret, clientRandom, serverRandom []byte, isClient bool) error {
	keys, err := deriveKeys(masterSecret, clientRandom, serverRandom, 0, gcmKeyLen, gcmSaltLen)
	if err != nil {
		return err
	}

	clientBlock, err := aes.NewCipher(keys.ClientWriteKey)
	if err != nil {
		return err
	}
	clientGCM, err := cipher.NewGCM(clientBlock)
	if err != nil {
		return err
	}
	serverBlock, err := aes.NewCipher(keys.ServerWriteKey)
	if err != nil {
		return err
	}
	serverGCM, err := cipher.NewGCM(serverBlock)
	if err != nil {
		return err
	}

	if isClient {
		s.localWriteSalt, s.remoteWriteSalt = keys.ClientWriteIV, keys.ServerWriteIV
		s.localAEAD, s.remoteAEAD = clientGCM, serverGCM
	} else {
		s.localWriteSalt, s.remoteWriteSalt = keys.ServerWriteIV, keys.ClientWriteIV
		s.localAEAD, s.remoteAEAD = serverGCM, clientGCM
	}
	return nil
}

func buildGCMNonce(salt []byte, p RecordParams) []byte {
	nonce := make([]byte, gcmSaltLen+gcmExplicitLen)
	copy(nonce, salt)
	nonce[gcmSaltLen] = byte(p.Epoch >> 8)
	nonce[gcmSaltLen+1] = byte(p.Epoch)
	seq := p.SequenceNumber
	for i := 0; i < 6; i++ {
		nonce[gcmSaltLen+2+i] = byte(seq >> (8 * (5 - i)))
	}
	return nonce
}

func (s *gcmSuite) Encrypt(header RecordParams, plaintext []byte) ([]byte, error) {
	if s.localAEAD == nil {
		return nil, errNotInitialized
	}
	nonce := buildGCMNonce(s.localWriteSalt, header)
	ad := additionalData(header, len(plaintext))
	sealed := s.localAEAD.Seal(nil, nonce, plaintext, ad)

	out := make([]byte, gcmExplicitLen+len(sealed))
	copy(out, nonce[gcmSaltLen:])
	copy(out[gcmExplicitLen:], sealed)
	return out, nil
}

func (s *gcmSuite) Decrypt(header RecordParams, ciphertext []byte) ([]byte, error) {
	if s.remoteAEAD == nil {
		return nil, errNotInitialized
	}
	if len(ciphertext) < gcmExplicitLen+s.remoteAEAD.Overhead() {
		return nil, errRecordTooShort
	}
	nonce := make([]byte, gcmSaltLen+gcmExplicitLen)
	copy(nonce, s.remoteWriteSalt)
	copy(nonce[gcmSaltLen:], ciphertext[:gcmExplicitLen])

	sealed := ciphertext[gcmExplicitLen:]
	ad := additionalData(header, len(sealed)-s.remoteAEAD.Overhead())
	return s.remoteAEAD.Open(nil, nonce, sealed, ad)
}
