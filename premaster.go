package dtls

// pskPreMasterSecret builds the pre-master secret for a plain PSK suite
// per RFC 4279 §2: uint16(len(psk)) || zeros(len(psk)) || uint16(len(psk))
// || psk. The leading zero-filled "other_secret" half is what would carry
// an RSA/DH contribution in a combined suite; plain PSK has none.
func pskPreMasterSecret(psk []byte) []byte {
	out := make([]byte, 0, 4+2*len(psk))
	out = appendUint16(out, uint16(len(psk)))
	out = append(out, make([]byte, len(psk))...)
	out = appendUint16(out, uint16(len(psk)))
	out = append(out, psk...)
	return out
}

// ecdhePSKPreMasterSecret builds the pre-master secret for ECDHE_PSK
// (RFC 5489): the ECDHE shared secret takes the place of the zero-filled
// other_secret half that plain PSK uses.
func ecdhePSKPreMasterSecret(ecdheShared, psk []byte) []byte {
	out := make([]byte, 0, 4+len(ecdheShared)+len(psk))
	out = appendUint16(out, uint16(len(ecdheShared)))
	out = append(out, ecdheShared...)
	out = appendUint16(out, uint16(len(psk)))
	out = append(out, psk...)
	return out
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

// serverKeyExchangeSignedParams builds the tuple an ECDHE_ECDSA
// ServerKeyExchange signs: client_random || server_random ||
// named_curve_selector || point.
func serverKeyExchangeSignedParams(clientRandom, serverRandom []byte, curveSelector []byte, point []byte) []byte {
	out := make([]byte, 0, len(clientRandom)+len(serverRandom)+len(curveSelector)+len(point))
	out = append(out, clientRandom...)
	out = append(out, serverRandom...)
	out = append(out, curveSelector...)
	out = append(out, point...)
	return out
}
