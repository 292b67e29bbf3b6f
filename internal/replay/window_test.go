package replay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func accept(t *testing.T, d *Detector, seq uint64) {
	fn, ok := d.Check(seq)
	require.True(t, ok, "seq %d should be accepted", seq)
	fn()
}

func reject(t *testing.T, d *Detector, seq uint64) {
	_, ok := d.Check(seq)
	require.False(t, ok, "seq %d should be rejected", seq)
}

func TestDetectorAcceptsInOrder(t *testing.T) {
	d := New()
	for seq := uint64(0); seq < 10; seq++ {
		accept(t, d, seq)
	}
}

func TestDetectorRejectsDuplicate(t *testing.T) {
	d := New()
	accept(t, d, 5)
	reject(t, d, 5)
}

func TestDetectorAcceptsOutOfOrderWithinWindow(t *testing.T) {
	d := New()
	accept(t, d, 10)
	accept(t, d, 8)
	accept(t, d, 9)
	reject(t, d, 8)
}

func TestDetectorRejectsTooOld(t *testing.T) {
	d := New()
	accept(t, d, 1000)
	reject(t, d, 1000-windowSize)
}

func TestDetectorAdvancesRightEdge(t *testing.T) {
	d := New()
	accept(t, d, 5)
	accept(t, d, 100)
	// 5 is now far outside the 64-wide window behind 100.
	reject(t, d, 5)
	accept(t, d, 99)
}

func TestDetectorCheckDoesNotMarkSeenUntilInvoked(t *testing.T) {
	d := New()
	fn, ok := d.Check(3)
	require.True(t, ok)

	// A second Check for the same seq before fn is called must still see
	// it as unaccepted - the caller authenticates before marking seen.
	fn2, ok2 := d.Check(3)
	require.True(t, ok2)

	fn()
	fn2()
	reject(t, d, 3)
}
