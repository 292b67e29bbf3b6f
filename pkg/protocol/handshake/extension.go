package handshake

import "github.com/coapstack/dtls/pkg/protocol"

// ExtensionID identifies a TLS/DTLS hello extension.
//
// https://www.iana.org/assignments/tls-extensiontype-values/
type ExtensionID uint16

// Extension IDs this module negotiates. DTLS 1.2 ECDHE needs the client to
// advertise which named curves and point formats it supports; everything
// else a peer sends is preserved but not interpreted.
const (
	ExtensionSupportedEllipticCurves ExtensionID = 10
	ExtensionSupportedPointFormats   ExtensionID = 11
)

// Extension is a raw (id, data) pair as carried in the extensions vector
// of ClientHello/ServerHello. Higher layers decode the few IDs they care
// about (elliptic curves, point formats) and ignore the rest.
type Extension struct {
	ID   ExtensionID
	Data []byte
}

// EncodeExtensions writes the extensions vector: a 2-byte overall length
// followed by each (id, 2-byte length, data) tuple.
func EncodeExtensions(exts []Extension) []byte {
	w := protocol.NewWriter(2)
	body := protocol.NewWriter(0)
	for _, e := range exts {
		body.PutUint16(uint16(e.ID))
		body.PutVector16(e.Data)
	}
	w.PutVector16(body.Bytes())
	return w.Bytes()
}

// DecodeExtensions reads an extensions vector. It tolerates a missing
// vector (extensions are optional in DTLS 1.2 ClientHello/ServerHello).
func DecodeExtensions(r *protocol.Reader) ([]Extension, error) {
	if r.Remaining() == 0 {
		return nil, nil
	}
	raw, err := r.Vector16()
	if err != nil {
		return nil, err
	}
	inner := protocol.NewReader(raw)
	var out []Extension
	for inner.Remaining() > 0 {
		id, err := inner.Uint16()
		if err != nil {
			return nil, err
		}
		data, err := inner.Vector16()
		if err != nil {
			return nil, err
		}
		out = append(out, Extension{ID: ExtensionID(id), Data: data})
	}
	return out, nil
}

// SupportedEllipticCurves encodes the named-curve list for the
// supported_elliptic_curves extension.
func SupportedEllipticCurves(curves []uint16) Extension {
	w := protocol.NewWriter(2 + 2*len(curves))
	inner := protocol.NewWriter(2 * len(curves))
	for _, c := range curves {
		inner.PutUint16(c)
	}
	w.PutVector16(inner.Bytes())
	return Extension{ID: ExtensionSupportedEllipticCurves, Data: w.Bytes()}
}

// DecodeSupportedEllipticCurves parses the supported_elliptic_curves
// extension payload into a list of named-curve IDs.
func DecodeSupportedEllipticCurves(data []byte) ([]uint16, error) {
	r := protocol.NewReader(data)
	raw, err := r.Vector16()
	if err != nil {
		return nil, err
	}
	inner := protocol.NewReader(raw)
	var out []uint16
	for inner.Remaining() > 0 {
		v, err := inner.Uint16()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// SupportedPointFormats encodes the ec_point_formats extension; this
// module only ever advertises/accepts the uncompressed format (0).
func SupportedPointFormats() Extension {
	return Extension{ID: ExtensionSupportedPointFormats, Data: []byte{0x01, 0x00}}
}
