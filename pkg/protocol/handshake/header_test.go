package handshake

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Type:            TypeClientHello,
		Length:          100,
		MessageSequence: 7,
		FragmentOffset:  20,
		FragmentLength:  40,
	}
	raw := h.Marshal()
	require.Len(t, raw, HeaderSize)

	var got Header
	require.NoError(t, got.Unmarshal(raw))
	require.Equal(t, h, got)
}

func TestFragmentRoundTrip(t *testing.T) {
	f := Fragment{
		Header: Header{
			Type:            TypeFinished,
			Length:          4,
			MessageSequence: 1,
			FragmentOffset:  0,
			FragmentLength:  4,
		},
		Data: []byte{0xaa, 0xbb, 0xcc, 0xdd},
	}
	raw := f.Marshal()

	var got Fragment
	require.NoError(t, got.Unmarshal(raw))
	require.Equal(t, f.Header, got.Header)
	require.Equal(t, f.Data, got.Data)
}

func TestFragmentUnmarshalRejectsShortBody(t *testing.T) {
	h := Header{Type: TypeFinished, FragmentLength: 10}
	raw := append(h.Marshal(), []byte{1, 2, 3}...)

	var got Fragment
	require.Error(t, got.Unmarshal(raw))
}
