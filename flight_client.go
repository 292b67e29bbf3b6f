package dtls

import (
	"crypto/x509"

	"github.com/coapstack/dtls/pkg/crypto/ciphersuite"
	"github.com/coapstack/dtls/pkg/crypto/elliptic"
	"github.com/coapstack/dtls/pkg/crypto/signature"
	"github.com/coapstack/dtls/pkg/protocol/handshake"
)

// buildClientHello constructs Flight 1 (no cookie yet) or Flight 3
// (cookie echoed back from HelloVerifyRequest).
func (h *Handshaker) buildClientHello(suites []ciphersuite.ID, curves []elliptic.Curve) (*handshake.ClientHello, error) {
	if h.clientRandom.RandomBytes == [28]byte{} {
		if err := h.clientRandom.Populate(); err != nil {
			return nil, err
		}
	}

	curveIDs := make([]uint16, len(curves))
	for i, c := range curves {
		curveIDs[i] = uint16(c)
	}

	h.offeredSessionID = h.sessionID

	return &handshake.ClientHello{
		Version:            protocolVersion,
		Random:             h.clientRandom,
		SessionID:          h.sessionID,
		Cookie:             h.cookie,
		CipherSuites:       suites,
		CompressionMethods: []uint8{0},
		Extensions: []handshake.Extension{
			handshake.SupportedEllipticCurves(curveIDs),
			handshake.SupportedPointFormats(),
		},
	}, nil
}

// processHelloVerifyRequest stores the cookie the client must echo in its
// next ClientHello (Flight 3).
func (h *Handshaker) processHelloVerifyRequest(hvr *handshake.HelloVerifyRequest) {
	h.cookie = hvr.Cookie
}

// processServerHello records the negotiated suite, server random and
// session id from ServerHello.
func (h *Handshaker) processServerHello(sh *handshake.ServerHello) error {
	h.selectedSuite = sh.CipherSuite
	h.serverRandom = sh.Random
	h.resuming = len(sh.SessionID) > 0 && sessionIDsEqual(sh.SessionID, h.offeredSessionID)
	h.sessionID = sh.SessionID
	return nil
}

func sessionIDsEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// processServerCertificate parses the server's certificate chain. The
// caller checks it with CredentialStore.VerifyCertChain (no hostname), and
// processServerKeyExchange later verifies the signature against its leaf.
func (h *Handshaker) processServerCertificate(body []byte) ([]*x509.Certificate, error) {
	cert := &handshake.Certificate{}
	if err := cert.Unmarshal(body); err != nil {
		return nil, err
	}
	chain := make([]*x509.Certificate, 0, len(cert.Certificate))
	for _, der := range cert.Certificate {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, err
		}
		chain = append(chain, c)
	}
	return chain, nil
}

// processServerKeyExchange parses the server's key-exchange contribution
// and, for ECDHE_ECDSA, verifies its signature against the server's
// certificate chain.
func (h *Handshaker) processServerKeyExchange(body []byte, serverChain []*x509.Certificate, curves []elliptic.Curve) error {
	ske := &handshake.ServerKeyExchange{}

	switch h.selectedSuite.KeyExchangeAlgorithm() {
	case ciphersuite.KeyExchangePSK:
		if err := ske.UnmarshalPSK(body); err != nil {
			return err
		}
		h.pskIdentity = ske.IdentityHint
		return nil

	case ciphersuite.KeyExchangeECDHEPSK:
		if err := ske.UnmarshalECDHEPSK(body); err != nil {
			return err
		}
		if err := h.selectCurve(ske.NamedCurve, curves); err != nil {
			return err
		}
		h.pskIdentity = ske.IdentityHint
		h.peerECPoint = ske.PublicKey
		return nil

	default: // ECDHE_ECDSA
		if err := ske.UnmarshalECDHEECDSA(body); err != nil {
			return err
		}
		if err := h.selectCurve(ske.NamedCurve, curves); err != nil {
			return err
		}
		if len(serverChain) == 0 {
			return ErrCertificateInvalid
		}
		clientRandom, err := h.clientRandom.Marshal()
		if err != nil {
			return err
		}
		serverRandom, err := h.serverRandom.Marshal()
		if err != nil {
			return err
		}
		signed := serverKeyExchangeSignedParams(clientRandom, serverRandom,
			[]byte{3, byte(ske.NamedCurve >> 8), byte(ske.NamedCurve)}, ske.PublicKey)
		if err := signature.Verify(serverChain[0], signed, ske.Signature); err != nil {
			return ErrCertificateInvalid
		}
		h.peerECPoint = ske.PublicKey
		return nil
	}
}

func (h *Handshaker) selectCurve(id uint16, curves []elliptic.Curve) error {
	for _, c := range curves {
		if uint16(c) == id {
			h.selectedCurve = c
			return nil
		}
	}
	return ErrNoCipherSuite
}

// buildClientKeyExchangeAndFinish builds the ClientKeyExchange message of
// Flight 5 and sets h.preMasterSecret, returning the message and its
// encoded body. It builds no Certificate or CertificateVerify; the caller
// derives the master secret and sends ChangeCipherSpec and Finished.
func (h *Handshaker) buildClientKeyExchangeAndFinish(session *Session, psk []byte) ([]handshake.Body, []byte, error) {
	var cke *handshake.ClientKeyExchange
	var bodyBytes []byte
	var err error

	switch h.selectedSuite.KeyExchangeAlgorithm() {
	case ciphersuite.KeyExchangePSK:
		cke = &handshake.ClientKeyExchange{Identity: h.pskIdentity}
		bodyBytes, err = cke.MarshalPSK()
		h.preMasterSecret = pskPreMasterSecret(psk)

	case ciphersuite.KeyExchangeECDHEPSK:
		kp, kerr := elliptic.GenerateKeypair(h.selectedCurve)
		if kerr != nil {
			return nil, nil, kerr
		}
		h.ecdhe = kp
		shared, derr := elliptic.Derive(h.selectedCurve, kp.PrivateKey, h.peerECPoint)
		if derr != nil {
			return nil, nil, derr
		}
		cke = &handshake.ClientKeyExchange{Identity: h.pskIdentity, PublicKey: kp.PublicKey}
		bodyBytes, err = cke.MarshalECDHEPSK()
		h.preMasterSecret = ecdhePSKPreMasterSecret(shared, psk)

	default: // ECDHE_ECDSA
		kp, kerr := elliptic.GenerateKeypair(h.selectedCurve)
		if kerr != nil {
			return nil, nil, kerr
		}
		h.ecdhe = kp
		shared, derr := elliptic.Derive(h.selectedCurve, kp.PrivateKey, h.peerECPoint)
		if derr != nil {
			return nil, nil, derr
		}
		cke = &handshake.ClientKeyExchange{PublicKey: kp.PublicKey}
		bodyBytes, err = cke.MarshalECDHE()
		h.preMasterSecret = shared
	}
	if err != nil {
		return nil, nil, err
	}

	return []handshake.Body{rawBody{t: handshakeClientKeyExchangeType(), data: bodyBytes}}, bodyBytes, nil
}

func handshakeClientKeyExchangeType() handshake.Type { return handshake.TypeClientKeyExchange }
