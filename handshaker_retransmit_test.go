package dtls

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coapstack/dtls/internal/workerpool"
)

// fakeTimerHandle/fakeTimerService let a test fire retransmit timers by
// hand instead of waiting on real ones, so backoff/cancellation/exhaustion
// can be driven deterministically.
type fakeTimerHandle struct{ cancel func() }

func (h *fakeTimerHandle) Cancel() { h.cancel() }

type scheduledTask struct {
	delay time.Duration
	task  func()
	live  bool
}

type fakeTimerService struct {
	mu    sync.Mutex
	tasks []*scheduledTask
}

func newFakeTimerService() *fakeTimerService { return &fakeTimerService{} }

func (f *fakeTimerService) ScheduleAfter(d time.Duration, task func()) TimerHandle {
	f.mu.Lock()
	st := &scheduledTask{delay: d, task: task, live: true}
	f.tasks = append(f.tasks, st)
	f.mu.Unlock()
	return &fakeTimerHandle{cancel: func() {
		f.mu.Lock()
		st.live = false
		f.mu.Unlock()
	}}
}

// fireLatest runs the most recently scheduled still-live task as if its
// delay had elapsed, reporting the delay it was armed with. It reports
// false if nothing live is left to fire (e.g. it was canceled).
func (f *fakeTimerService) fireLatest() (time.Duration, bool) {
	f.mu.Lock()
	var st *scheduledTask
	for i := len(f.tasks) - 1; i >= 0; i-- {
		if f.tasks[i].live {
			st = f.tasks[i]
			break
		}
	}
	f.mu.Unlock()
	if st == nil {
		return 0, false
	}
	st.task()
	return st.delay, true
}

func newTestConnectionForRetransmit(t *testing.T) *Connection {
	t.Helper()
	pool := workerpool.New(2, 8)
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })
	return newConnection(fakeAddr("retransmit-peer"), pool)
}

// TestHandshakerRetransmitCancelOnProgress confirms a timer canceled
// before it fires (the normal case: the peer's next message arrives and
// the handshake moves on, calling cancelRetransmitTimer or sendFlight for
// the next flight) never resends anything.
func TestHandshakerRetransmitCancelOnProgress(t *testing.T) {
	conn := newTestConnectionForRetransmit(t)
	h := conn.beginHandshake(RoleClient, 10*time.Millisecond)

	timers := newFakeTimerService()
	var resendCount int
	var mu sync.Mutex
	resend := func(_ [][]byte) error {
		mu.Lock()
		resendCount++
		mu.Unlock()
		return nil
	}

	h.sendFlight([][]byte{[]byte("flight")}, timers, 3, resend)
	h.cancelRetransmitTimer()

	_, fired := timers.fireLatest()
	require.False(t, fired, "a canceled retransmit timer must not be fireable")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 0, resendCount)
}

// TestHandshakerRetransmitBackoffDoublesThenFails drives a flight through
// every retransmission the configured backoff allows, checking the
// interval doubles each time and that exhausting maxRetransmissions
// reaches Connection.failHandshake with ErrHandshakeTimeout — exercised
// here simply by never letting the "peer" answer at all.
func TestHandshakerRetransmitBackoffDoublesThenFails(t *testing.T) {
	conn := newTestConnectionForRetransmit(t)
	h := conn.beginHandshake(RoleClient, 10*time.Millisecond)

	timers := newFakeTimerService()
	var mu sync.Mutex
	var resends [][][]byte
	resend := func(d [][]byte) error {
		mu.Lock()
		resends = append(resends, d)
		mu.Unlock()
		return nil
	}

	flight := [][]byte{[]byte("flight")}
	h.sendFlight(flight, timers, 1, resend)

	delay1, fired1 := timers.fireLatest()
	require.True(t, fired1)
	require.Equal(t, 10*time.Millisecond, delay1)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(resends) == 1
	}, time.Second, time.Millisecond, "the first timeout must resend the cached flight")
	require.Equal(t, 20*time.Millisecond, h.retransmitTimeout, "backoff must double after the first retransmission")

	delay2, fired2 := timers.fireLatest()
	require.True(t, fired2)
	require.Equal(t, 20*time.Millisecond, delay2)

	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.lifecycle == LifecycleTerminated
	}, time.Second, time.Millisecond, "exhausting maxRetransmissions must fail the handshake")

	mu.Lock()
	resendCountAfterExhaustion := len(resends)
	mu.Unlock()
	require.Equal(t, 1, resendCountAfterExhaustion, "the second timeout exhausts retries rather than resending again")

	conn.mu.Lock()
	err := conn.establishErr
	conn.mu.Unlock()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrHandshakeTimeout))

	select {
	case <-conn.established:
	default:
		t.Fatal("failHandshake must close the established channel")
	}
}

// TestHandshakerRetransmitStopsAfterHandshakeEstablished guards against a
// retransmit timer that was already in flight when Finished arrived: once
// the handshaker reaches StateEstablished, a timer firing afterwards must
// be a no-op rather than resending a flight for a handshake that is over.
func TestHandshakerRetransmitStopsAfterHandshakeEstablished(t *testing.T) {
	conn := newTestConnectionForRetransmit(t)
	h := conn.beginHandshake(RoleClient, 10*time.Millisecond)

	timers := newFakeTimerService()
	var resendCount int
	var mu sync.Mutex
	resend := func(_ [][]byte) error {
		mu.Lock()
		resendCount++
		mu.Unlock()
		return nil
	}

	h.sendFlight([][]byte{[]byte("flight")}, timers, 5, resend)

	session := NewSession(conn.PeerAddr, 0, true)
	h.pendingSession = session
	conn.completeHandshake(session)
	h.state = StateEstablished

	_, fired := timers.fireLatest()
	require.True(t, fired, "the timer itself is still live; onFlightTimeout is what must no-op")

	require.Never(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return resendCount > 0
	}, 50*time.Millisecond, time.Millisecond)
}
