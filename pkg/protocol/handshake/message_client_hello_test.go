package handshake

import (
	"testing"
	"time"

	"github.com/coapstack/dtls/pkg/crypto/ciphersuite"
	"github.com/coapstack/dtls/pkg/protocol"
	"github.com/stretchr/testify/require"
)

func TestClientHelloRoundTrip(t *testing.T) {
	ch := &ClientHello{
		Version: protocol.Version1_2,
		Random: Random{
			GMTUnixTime: time.Unix(1700000000, 0),
			RandomBytes: [28]byte{1, 2, 3, 4, 5},
		},
		SessionID:          []byte{},
		Cookie:              []byte{0xde, 0xad, 0xbe, 0xef},
		CipherSuites:        []ciphersuite.ID{ciphersuite.TLS_PSK_WITH_AES_128_CCM_8, ciphersuite.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256},
		CompressionMethods:  []uint8{0},
		Extensions: []Extension{
			SupportedEllipticCurves([]uint16{23, 29}),
			SupportedPointFormats(),
		},
	}

	raw, err := ch.Marshal()
	require.NoError(t, err)

	got := &ClientHello{}
	require.NoError(t, got.Unmarshal(raw))

	require.Equal(t, ch.Version, got.Version)
	require.Equal(t, ch.Random.RandomBytes, got.Random.RandomBytes)
	require.Equal(t, ch.Cookie, got.Cookie)
	require.Equal(t, ch.CipherSuites, got.CipherSuites)
	require.Equal(t, ch.CompressionMethods, got.CompressionMethods)
	require.Len(t, got.Extensions, 2)

	curves, err := DecodeSupportedEllipticCurves(got.Extensions[0].Data)
	require.NoError(t, err)
	require.Equal(t, []uint16{23, 29}, curves)
}

func TestClientHelloEmptyCookieRoundTrip(t *testing.T) {
	ch := &ClientHello{
		Version:            protocol.Version1_2,
		CipherSuites:       []ciphersuite.ID{ciphersuite.TLS_PSK_WITH_AES_128_CCM_8},
		CompressionMethods: []uint8{0},
	}
	raw, err := ch.Marshal()
	require.NoError(t, err)

	got := &ClientHello{}
	require.NoError(t, got.Unmarshal(raw))
	require.Empty(t, got.Cookie)
	require.Nil(t, got.Extensions)
}

func TestHelloVerifyRequestRejectsOversizedCookie(t *testing.T) {
	hvr := &HelloVerifyRequest{Cookie: make([]byte, 256)}
	_, err := hvr.Marshal()
	require.Error(t, err)
}

func TestHelloVerifyRequestRoundTrip(t *testing.T) {
	hvr := &HelloVerifyRequest{
		Version: protocol.Version1_2,
		Cookie:  []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	raw, err := hvr.Marshal()
	require.NoError(t, err)

	got := &HelloVerifyRequest{}
	require.NoError(t, got.Unmarshal(raw))
	require.Equal(t, hvr.Version, got.Version)
	require.Equal(t, hvr.Cookie, got.Cookie)
}
