package fragment

import (
	"math/rand"
	"testing"

	"github.com/coapstack/dtls/pkg/protocol/handshake"
	"github.com/stretchr/testify/require"
)

func frag(msgType handshake.Type, seq uint16, total uint32, offset uint32, data []byte) handshake.Fragment {
	return handshake.Fragment{
		Header: handshake.Header{
			Type:            msgType,
			Length:          total,
			MessageSequence: seq,
			FragmentOffset:  offset,
			FragmentLength:  uint32(len(data)),
		},
		Data: data,
	}
}

func TestReassemblerSingleUnfragmentedMessage(t *testing.T) {
	r := New()
	body := []byte("hello world")
	complete, err := r.Push(frag(handshake.TypeFinished, 0, uint32(len(body)), 0, body))
	require.NoError(t, err)
	require.True(t, complete)

	mt, data, ok := r.Message(0)
	require.True(t, ok)
	require.Equal(t, handshake.TypeFinished, mt)
	require.Equal(t, body, data)
}

func TestReassemblerInOrderFragments(t *testing.T) {
	r := New()
	body := []byte("0123456789")

	complete, err := r.Push(frag(handshake.TypeCertificate, 1, 10, 0, body[0:4]))
	require.NoError(t, err)
	require.False(t, complete)

	complete, err = r.Push(frag(handshake.TypeCertificate, 1, 10, 4, body[4:10]))
	require.NoError(t, err)
	require.True(t, complete)

	_, data, ok := r.Message(1)
	require.True(t, ok)
	require.Equal(t, body, data)
}

func TestReassemblerOutOfOrderOverlapAndDuplicate(t *testing.T) {
	r := New()
	body := []byte("abcdefghij")

	pushes := []handshake.Fragment{
		frag(handshake.TypeCertificate, 2, 10, 6, body[6:10]),
		frag(handshake.TypeCertificate, 2, 10, 6, body[6:10]), // duplicate
		frag(handshake.TypeCertificate, 2, 10, 0, body[0:5]),
		frag(handshake.TypeCertificate, 2, 10, 3, body[3:8]), // overlaps both neighbors
	}

	var complete bool
	var err error
	for _, f := range pushes {
		complete, err = r.Push(f)
		require.NoError(t, err)
	}
	require.True(t, complete)

	_, data, ok := r.Message(2)
	require.True(t, ok)
	require.Equal(t, body, data)
}

func TestReassemblerRandomizedSplitShuffleMerge(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	body := make([]byte, 257)
	rng.Read(body)

	var frags []handshake.Fragment
	offset := uint32(0)
	for offset < uint32(len(body)) {
		n := uint32(1 + rng.Intn(17))
		if offset+n > uint32(len(body)) {
			n = uint32(len(body)) - offset
		}
		frags = append(frags, frag(handshake.TypeCertificate, 9, uint32(len(body)), offset, body[offset:offset+n]))
		offset += n
	}
	rng.Shuffle(len(frags), func(i, j int) { frags[i], frags[j] = frags[j], frags[i] })

	r := New()
	var complete bool
	var err error
	for _, f := range frags {
		complete, err = r.Push(f)
		require.NoError(t, err)
	}
	require.True(t, complete)

	_, data, ok := r.Message(9)
	require.True(t, ok)
	require.Equal(t, body, data)
}

func TestReassemblerRejectsConflictingLength(t *testing.T) {
	r := New()
	_, err := r.Push(frag(handshake.TypeFinished, 0, 10, 0, []byte("hi")))
	require.NoError(t, err)

	_, err = r.Push(frag(handshake.TypeFinished, 0, 20, 2, []byte("there")))
	require.Error(t, err)
}

func TestReassemblerRejectsFragmentPastDeclaredLength(t *testing.T) {
	r := New()
	_, err := r.Push(frag(handshake.TypeFinished, 0, 4, 2, []byte("abcd")))
	require.Error(t, err)
}

func TestReassemblerForgetDropsState(t *testing.T) {
	r := New()
	body := []byte("x")
	complete, err := r.Push(frag(handshake.TypeFinished, 5, 1, 0, body))
	require.NoError(t, err)
	require.True(t, complete)

	r.Forget(5)
	_, _, ok := r.Message(5)
	require.False(t, ok)
}

func TestReassemblerEmptyMessageIsImmediatelyComplete(t *testing.T) {
	r := New()
	complete, err := r.Push(frag(handshake.TypeServerHelloDone, 3, 0, 0, nil))
	require.NoError(t, err)
	require.True(t, complete)
}
