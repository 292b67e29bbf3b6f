package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := New(4, 16)
	defer p.Stop(context.Background())

	var n atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		p.Submit(func() {
			n.Add(1)
			wg.Done()
		})
	}
	wg.Wait()
	require.EqualValues(t, 100, n.Load())
}

func TestPoolTrySubmitFailsWhenQueueFull(t *testing.T) {
	p := New(1, 1)
	defer p.Stop(context.Background())

	block := make(chan struct{})
	started := make(chan struct{})
	p.Submit(func() {
		close(started)
		<-block
	})
	<-started

	// Queue depth 1: fill it, then the next TrySubmit must fail.
	require.True(t, p.TrySubmit(func() {}))
	ok := p.TrySubmit(func() {})
	require.False(t, ok)

	close(block)
}

func TestPoolStopWaitsForDrain(t *testing.T) {
	p := New(2, 4)
	started := make(chan struct{})
	release := make(chan struct{})
	p.Submit(func() {
		close(started)
		<-release
	})
	<-started

	done := make(chan error, 1)
	go func() { done <- p.Stop(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Stop returned before the running task finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
}

func TestPoolStopRespectsContextDeadline(t *testing.T) {
	p := New(1, 4)
	block := make(chan struct{})
	p.Submit(func() { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.Stop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}
