package workerpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSerialRunsTasksInOrderNeverConcurrently(t *testing.T) {
	pool := New(8, 64)
	defer pool.Stop(context.Background())

	s := NewSerial(pool)

	var mu sync.Mutex
	var order []int
	var inFlight int
	var maxInFlight int

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		s.Submit(func() {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			order = append(order, i)
			inFlight--
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	require.Equal(t, 1, maxInFlight, "serial executor must never run two tasks concurrently")
	for i, v := range order {
		require.Equal(t, i, v, "tasks must run in submission order")
	}
}

func TestSerialPendingReflectsQueueDepth(t *testing.T) {
	pool := New(1, 8)
	defer pool.Stop(context.Background())

	s := NewSerial(pool)
	block := make(chan struct{})
	started := make(chan struct{})

	s.Submit(func() {
		close(started)
		<-block
	})
	<-started

	s.Submit(func() {})
	s.Submit(func() {})

	require.Equal(t, 2, s.Pending())
	close(block)
}

func TestSerialIndependentPeersRunConcurrently(t *testing.T) {
	pool := New(4, 64)
	defer pool.Stop(context.Background())

	a := NewSerial(pool)
	b := NewSerial(pool)

	release := make(chan struct{})
	aStarted := make(chan struct{})
	bDone := make(chan struct{})

	a.Submit(func() {
		close(aStarted)
		<-release
	})
	<-aStarted

	b.Submit(func() { close(bDone) })

	select {
	case <-bDone:
	case <-time.After(time.Second):
		t.Fatal("peer b's serial executor was blocked by peer a's in-flight task")
	}
	close(release)
}
