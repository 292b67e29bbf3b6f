package record

import (
	"testing"

	"github.com/coapstack/dtls/pkg/protocol"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		ContentType:    protocol.ContentTypeHandshake,
		Version:        protocol.Version1_2,
		Epoch:          3,
		SequenceNumber: 0x0000deadbeef,
		ContentLen:     42,
	}
	raw, err := h.Marshal()
	require.NoError(t, err)
	require.Len(t, raw, HeaderSize)

	var got Header
	require.NoError(t, got.Unmarshal(raw))
	require.Equal(t, h, got)
}

func TestHeaderMarshalRejectsSequenceOverflow(t *testing.T) {
	h := Header{SequenceNumber: MaxSequenceNumber + 1}
	_, err := h.Marshal()
	require.Error(t, err)
}

func TestUnpackDatagramSplitsMultipleRecords(t *testing.T) {
	h1 := Header{ContentType: protocol.ContentTypeHandshake, Version: protocol.Version1_2, ContentLen: 3}
	h2 := Header{ContentType: protocol.ContentTypeAlert, Version: protocol.Version1_2, Epoch: 1, ContentLen: 2}

	raw1, err := h1.Marshal()
	require.NoError(t, err)
	raw2, err := h2.Marshal()
	require.NoError(t, err)

	buf := append(append(raw1, []byte{1, 2, 3}...), append(raw2, []byte{9, 9}...)...)

	records, err := UnpackDatagram(buf)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, records[0], HeaderSize+3)
	require.Len(t, records[1], HeaderSize+2)
}

func TestUnpackDatagramRejectsShortHeader(t *testing.T) {
	_, err := UnpackDatagram([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestUnpackDatagramRejectsTruncatedPayload(t *testing.T) {
	h := Header{ContentType: protocol.ContentTypeHandshake, Version: protocol.Version1_2, ContentLen: 10}
	raw, err := h.Marshal()
	require.NoError(t, err)
	_, err = UnpackDatagram(append(raw, []byte{1, 2, 3}...))
	require.Error(t, err)
}
