package dtls

import "time"

// MonotonicClock is the external time source the handshaker and
// connection store use for staleness and retransmission-interval math.
// Consumers that need deterministic tests supply their own implementation;
// production callers use SystemClock.
type MonotonicClock interface {
	NowNanos() int64
}

// SystemClock implements MonotonicClock with the runtime's monotonic
// clock via time.Now().
type SystemClock struct{}

// NowNanos returns time.Now() expressed as nanoseconds since an arbitrary
// but consistent epoch. Only differences between two calls are meaningful.
func (SystemClock) NowNanos() int64 {
	return time.Now().UnixNano()
}
