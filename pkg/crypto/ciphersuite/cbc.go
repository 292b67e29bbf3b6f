package ciphersuite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
)

const (
	cbcKeyLen = 16
	cbcMacLen = 32 // HMAC-SHA256
	cbcIVLen  = 16 // AES block size
)

var (
	errCBCShortRecord = errors.New("ciphersuite: cbc record shorter than IV+MAC")
	errCBCBadPadding  = errors.New("ciphersuite: cbc padding invalid")
	errCBCBadMAC      = errors.New("ciphersuite: cbc mac mismatch")
)

// cbcSuite implements the MAC-then-encrypt AES-128-CBC/HMAC-SHA256 suites
// (PSK and ECDHE-PSK key exchange).
//
// Grounded on pion-dtls's crypto_cbc.go.
type cbcSuite struct {
	id ID
	ka KeyExchangeAlgorithm

	localWriteKey, localMACKey   []byte
	remoteWriteKey, remoteMACKey []byte
}

func (s *cbcSuite) ID() ID                                    { return s.id }
func (s *cbcSuite) KeyExchangeAlgorithm() KeyExchangeAlgorithm { return s.ka }

func (s *cbcSuite) Init(masterSecret, clientRandom, serverRandom []byte, isClient bool) error {
	keys, err := deriveKeys(masterSecret, clientRandom, serverRandom, cbcMacLen, cbcKeyLen, 0)
	if err != nil {
		return err
	}
	if isClient {
		s.localWriteKey, s.localMACKey = keys.ClientWriteKey, keys.ClientMACKey
		s.remoteWriteKey, s.remoteMACKey = keys.ServerWriteKey, keys.ServerMACKey
	} else {
		s.localWriteKey, s.localMACKey = keys.ServerWriteKey, keys.ServerMACKey
		s.remoteWriteKey, s.remoteMACKey = keys.ClientWriteKey, keys.ClientMACKey
	}
	return nil
}

func cbcMAC(macKey []byte, p RecordParams, plaintext []byte) []byte {
	mac := hmac.New(sha256.New, macKey)
	mac.Write(additionalData(p, len(plaintext)))
	mac.Write(plaintext)
	return mac.Sum(nil)
}

func (s *cbcSuite) Encrypt(header RecordParams, plaintext []byte) ([]byte, error) {
	if s.localWriteKey == nil {
		return nil, errNotInitialized
	}
	block, err := aes.NewCipher(s.localWriteKey)
	if err != nil {
		return nil, err
	}

	mac := cbcMAC(s.localMACKey, header, plaintext)
	payload := append(append([]byte{}, plaintext...), mac...)

	padLen := cbcIVLen - (len(payload) % cbcIVLen)
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen - 1)
	}
	payload = append(payload, padding...)

	iv := make([]byte, cbcIVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	out := make([]byte, cbcIVLen+len(payload))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[cbcIVLen:], payload)
	return out, nil
}

func (s *cbcSuite) Decrypt(header RecordParams, ciphertext []byte) ([]byte, error) {
	if s.remoteWriteKey == nil {
		return nil, errNotInitialized
	}
	if len(ciphertext) < cbcIVLen+cbcMacLen+cbcIVLen {
		return nil, errCBCShortRecord
	}
	block, err := aes.NewCipher(s.remoteWriteKey)
	if err != nil {
		return nil, err
	}

	iv := ciphertext[:cbcIVLen]
	enc := ciphertext[cbcIVLen:]
	if len(enc)%cbcIVLen != 0 {
		return nil, errCBCShortRecord
	}

	payload := make([]byte, len(enc))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(payload, enc)

	padLen := int(payload[len(payload)-1]) + 1
	if padLen > len(payload) || padLen > 255 {
		return nil, errCBCBadPadding
	}
	for _, b := range payload[len(payload)-padLen:] {
		if int(b) != padLen-1 {
			return nil, errCBCBadPadding
		}
	}
	payload = payload[:len(payload)-padLen]

	if len(payload) < cbcMacLen {
		return nil, errCBCBadMAC
	}
	plaintext := payload[:len(payload)-cbcMacLen]
	gotMAC := payload[len(payload)-cbcMacLen:]
	wantMAC := cbcMAC(s.remoteMACKey, header, plaintext)
	if !hmac.Equal(gotMAC, wantMAC) {
		return nil, errCBCBadMAC
	}
	return plaintext, nil
}
