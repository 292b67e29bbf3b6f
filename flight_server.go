package dtls

import (
	"crypto/ecdsa"
	"net"

	"github.com/coapstack/dtls/pkg/crypto/ciphersuite"
	"github.com/coapstack/dtls/pkg/crypto/elliptic"
	"github.com/coapstack/dtls/pkg/crypto/signature"
	"github.com/coapstack/dtls/pkg/protocol/handshake"
)

// outboundFlight marshals each message, fragments it to fit the PMTU,
// records it into the handshake transcript (RFC 6347 §4.2.6: every
// message except HelloVerifyRequest and the pre-cookie first ClientHello
// counts), and packs the resulting fragments into as few datagrams as
// possible. Used for every flight both roles send except HelloVerifyRequest
// and the client's very first ClientHello, which predate any transcript.
func (h *Handshaker) outboundFlight(session *Session, messages []handshake.Body) ([][]byte, error) {
	var allFragments []handshake.Fragment
	for _, msg := range messages {
		body, err := msg.Marshal()
		if err != nil {
			return nil, err
		}
		seq := h.nextMessageSeq()
		h.recordTranscript(msg.Type(), seq, body)
		allFragments = append(allFragments, fragmentHandshakeBody(msg.Type(), seq, body)...)
	}
	return packFlightDatagrams(session, allFragments)
}

// headerForWholeMessage reconstructs the logical (unfragmented) handshake
// header for transcript hashing, since RFC 6347 §4.2.6 specifies the
// Finished hash covers messages as if sent unfragmented.
func headerForWholeMessage(t handshake.Type, seq uint16, body []byte) []byte {
	hdr := handshake.Header{Type: t, Length: uint32(len(body)), MessageSequence: seq, FragmentOffset: 0, FragmentLength: uint32(len(body))}
	return hdr.Marshal()
}

// clientHelloCookieParams extracts the fields a HelloVerifyRequest cookie
// is bound to: version, random, session id and offered cipher suites.
// Computed identically on generation and verification so the cookie
// exchange stays stateless.
func clientHelloCookieParams(ch *handshake.ClientHello) []byte {
	out := []byte{ch.Version.Major, ch.Version.Minor}
	random, err := ch.Random.Marshal()
	if err == nil {
		out = append(out, random...)
	}
	out = append(out, ch.SessionID...)
	for _, s := range ch.CipherSuites {
		out = append(out, byte(s>>8), byte(s))
	}
	return out
}

// buildHelloVerifyRequest answers a cookie-less ClientHello with Flight 2.
// No Connection exists yet at this point — the cookie generator is
// stateless, so this can run before any store lookup.
func buildHelloVerifyRequest(cookieGen *cookieGenerator, addr net.Addr, clientHelloParams []byte) (*handshake.HelloVerifyRequest, []byte) {
	cookie := cookieGen.Generate(addr, clientHelloParams)
	return &handshake.HelloVerifyRequest{Version: protocolVersion, Cookie: cookie}, cookie
}

// processClientHello validates the negotiated parameters from an inbound
// ClientHello and records the client random, selected suite and session
// id the rest of the server flight depends on.
func (h *Handshaker) processClientHello(ch *handshake.ClientHello, supportedSuites []ciphersuite.ID) error {
	h.clientRandom = ch.Random
	h.sessionID = ch.SessionID

	for _, want := range supportedSuites {
		for _, offered := range ch.CipherSuites {
			if want == offered {
				h.selectedSuite = want
				goto selected
			}
		}
	}
	return ErrNoCipherSuite
selected:

	if h.selectedSuite.KeyExchangeAlgorithm() != ciphersuite.KeyExchangePSK {
		curves, err := extractSupportedCurves(ch.Extensions)
		if err != nil {
			return err
		}
		for _, c := range curves {
			if elliptic.IsSupported(c) {
				h.selectedCurve = c
				break
			}
		}
		if h.selectedCurve == 0 {
			return ErrNoCipherSuite
		}
	}
	return nil
}

func extractSupportedCurves(exts []handshake.Extension) ([]elliptic.Curve, error) {
	for _, e := range exts {
		if e.ID == handshake.ExtensionSupportedEllipticCurves {
			raw, err := handshake.DecodeSupportedEllipticCurves(e.Data)
			if err != nil {
				return nil, err
			}
			out := make([]elliptic.Curve, len(raw))
			for i, v := range raw {
				out[i] = elliptic.Curve(v)
			}
			return out, nil
		}
	}
	return nil, nil
}

// buildServerFlight4Messages constructs ServerHello [Certificate]
// [ServerKeyExchange] ServerHelloDone for the negotiated suite.
func (h *Handshaker) buildServerFlight4Messages(credentials CredentialStore, pskIdentityHint []byte) ([]handshake.Body, error) {
	h.serverRandom = handshake.Random{}
	if err := h.serverRandom.Populate(); err != nil {
		return nil, err
	}

	messages := []handshake.Body{&handshake.ServerHello{
		Version:           protocolVersion,
		Random:            h.serverRandom,
		SessionID:         h.sessionID,
		CipherSuite:       h.selectedSuite,
		CompressionMethod: 0,
	}}

	switch h.selectedSuite.KeyExchangeAlgorithm() {
	case ciphersuite.KeyExchangeECDHEECDSA:
		chain, key, err := credentials.OwnCertificate()
		if err != nil {
			return nil, err
		}
		der := make([][]byte, len(chain))
		for i, c := range chain {
			der[i] = c.Raw
		}
		messages = append(messages, &handshake.Certificate{Certificate: der})

		kp, err := elliptic.GenerateKeypair(h.selectedCurve)
		if err != nil {
			return nil, err
		}
		h.ecdhe = kp

		ecdsaKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, errCertificateKeyNotECDSA
		}
		clientRandom, err := h.clientRandom.Marshal()
		if err != nil {
			return nil, err
		}
		serverRandom, err := h.serverRandom.Marshal()
		if err != nil {
			return nil, err
		}
		signed := serverKeyExchangeSignedParams(clientRandom, serverRandom,
			[]byte{3, byte(h.selectedCurve >> 8), byte(h.selectedCurve)}, kp.PublicKey)
		sig, err := signature.Sign(ecdsaKey, signed)
		if err != nil {
			return nil, err
		}
		ske := &handshake.ServerKeyExchange{
			NamedCurve:             uint16(h.selectedCurve),
			PublicKey:              kp.PublicKey,
			SignatureHashAlgorithm: handshake.SignatureHashAlgorithm{Hash: 4, Signature: 3}, // SHA-256, ECDSA
			Signature:              sig,
		}
		body, err := ske.MarshalECDHEECDSA()
		if err != nil {
			return nil, err
		}
		messages = append(messages, rawBody{t: handshake.TypeServerKeyExchange, data: body})

	case ciphersuite.KeyExchangeECDHEPSK:
		kp, err := elliptic.GenerateKeypair(h.selectedCurve)
		if err != nil {
			return nil, err
		}
		h.ecdhe = kp
		ske := &handshake.ServerKeyExchange{IdentityHint: pskIdentityHint, NamedCurve: uint16(h.selectedCurve), PublicKey: kp.PublicKey}
		body, err := ske.MarshalECDHEPSK()
		if err != nil {
			return nil, err
		}
		messages = append(messages, rawBody{t: handshake.TypeServerKeyExchange, data: body})

	case ciphersuite.KeyExchangePSK:
		if len(pskIdentityHint) > 0 {
			ske := &handshake.ServerKeyExchange{IdentityHint: pskIdentityHint}
			body, err := ske.MarshalPSK()
			if err != nil {
				return nil, err
			}
			messages = append(messages, rawBody{t: handshake.TypeServerKeyExchange, data: body})
		}
	}

	messages = append(messages, &handshake.ServerHelloDone{})
	return messages, nil
}

// processClientKeyExchange extracts the peer's key-exchange contribution
// and derives the pre-master secret.
func (h *Handshaker) processClientKeyExchange(body []byte, credentials CredentialStore) error {
	cke := &handshake.ClientKeyExchange{}

	switch h.selectedSuite.KeyExchangeAlgorithm() {
	case ciphersuite.KeyExchangePSK:
		if err := cke.UnmarshalPSK(body); err != nil {
			return err
		}
		psk, err := credentials.LookupPSK(cke.Identity)
		if err != nil {
			return ErrPSKNotFound
		}
		h.pskIdentity = cke.Identity
		h.preMasterSecret = pskPreMasterSecret(psk)

	case ciphersuite.KeyExchangeECDHEPSK:
		if err := cke.UnmarshalECDHEPSK(body); err != nil {
			return err
		}
		psk, err := credentials.LookupPSK(cke.Identity)
		if err != nil {
			return ErrPSKNotFound
		}
		shared, err := elliptic.Derive(h.selectedCurve, h.ecdhe.PrivateKey, cke.PublicKey)
		if err != nil {
			return err
		}
		h.pskIdentity = cke.Identity
		h.preMasterSecret = ecdhePSKPreMasterSecret(shared, psk)

	default: // ECDHE_ECDSA
		if err := cke.UnmarshalECDHE(body); err != nil {
			return err
		}
		shared, err := elliptic.Derive(h.selectedCurve, h.ecdhe.PrivateKey, cke.PublicKey)
		if err != nil {
			return err
		}
		h.preMasterSecret = shared
	}
	return nil
}

// rawBody wraps a pre-marshaled handshake body (used for the
// ServerKeyExchange/ClientKeyExchange variants whose shape depends on the
// negotiated suite, decided outside the generic Marshal/Unmarshal path).
type rawBody struct {
	t    handshake.Type
	data []byte
}

func (r rawBody) Type() handshake.Type      { return r.t }
func (r rawBody) Marshal() ([]byte, error)  { return r.data, nil }
func (r rawBody) Unmarshal(data []byte) error {
	return nil
}
