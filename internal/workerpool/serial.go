package workerpool

import "sync"

// Serial is a single-producer FIFO queue of tasks that runs on a shared
// Pool while guaranteeing no two of its own tasks ever execute
// concurrently. One Serial is bound to each Connection so record
// processing for a given peer is strictly ordered without a per-peer lock.
type Serial struct {
	pool *Pool

	mu      sync.Mutex
	queue   []Task
	running bool
}

// NewSerial creates a Serial executor feeding into pool.
func NewSerial(pool *Pool) *Serial {
	return &Serial{pool: pool}
}

// Submit enqueues task. If this Serial has no task currently running, it
// is handed to the shared pool immediately; otherwise it waits behind
// whatever this Serial already has queued.
func (s *Serial) Submit(task Task) {
	s.mu.Lock()
	s.queue = append(s.queue, task)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	s.pool.Submit(s.runNext)
}

func (s *Serial) runNext() {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.running = false
		s.mu.Unlock()
		return
	}
	task := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	task()
	s.pool.Submit(s.runNext)
}

// Pending reports how many tasks are queued behind the one (if any)
// currently executing. Intended for tests and diagnostics.
func (s *Serial) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
