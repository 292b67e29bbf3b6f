package dtls

import (
	"container/list"
	"net"
	"sync"

	"github.com/coapstack/dtls/internal/workerpool"
)

// connectionStore is the bounded, address-keyed map of Connections a
// Connector dispatches datagrams through. It tracks recency via an
// intrusive doubly-linked list so eviction can pick the
// least-recently-touched entry without a full scan.
//
// pion-dtls has no equivalent — it is one Conn per dial/accept, never a
// shared store; the LRU bookkeeping
// follows the shape of the standard library's container/list, which is
// exactly sized for this: a fixed-capacity cache with O(1) touch/evict
// needs nothing heavier, and no library in the retrieved pack offers an
// address-keyed LRU this module could adopt wholesale instead.
type connectionStore struct {
	mu       sync.Mutex
	capacity int
	byAddr   map[string]*list.Element
	order    *list.List // front = most recently touched
	pool     *workerpool.Pool
}

// storeEntry is the value held at each list.Element.
type storeEntry struct {
	addr net.Addr
	conn *Connection
}

func newConnectionStore(capacity int, pool *workerpool.Pool) *connectionStore {
	return &connectionStore{
		capacity: capacity,
		byAddr:   make(map[string]*list.Element),
		order:    list.New(),
		pool:     pool,
	}
}

// Get returns the Connection for addr, if any, and marks it as just
// touched.
func (s *connectionStore) Get(addr net.Addr) (*Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.byAddr[addr.String()]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(el)
	return el.Value.(*storeEntry).conn, true
}

// GetOrCreate returns the existing Connection for addr, or creates one,
// evicting a stale entry first if the store is at capacity. It returns
// ErrStoreFull if at capacity with nothing evictable, in which case the
// caller aborts the handshake attempt silently.
func (s *connectionStore) GetOrCreate(addr net.Addr, clock MonotonicClock, idleThreshold int64) (*Connection, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := addr.String()
	if el, ok := s.byAddr[key]; ok {
		s.order.MoveToFront(el)
		return el.Value.(*storeEntry).conn, false, nil
	}

	if len(s.byAddr) >= s.capacity {
		if !s.evictOneLocked(clock, idleThreshold) {
			return nil, false, ErrStoreFull
		}
	}

	conn := newConnection(addr, s.pool)
	conn.touch(clock)
	el := s.order.PushFront(&storeEntry{addr: addr, conn: conn})
	s.byAddr[key] = el
	return conn, true, nil
}

// Touch re-marks addr's entry as most recently used, called after every
// datagram successfully dispatched to it.
func (s *connectionStore) Touch(addr net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.byAddr[addr.String()]; ok {
		s.order.MoveToFront(el)
	}
}

// Remove drops addr's entry entirely (e.g. after a fatal alert or
// close_notify tears the Connection down).
func (s *connectionStore) Remove(addr net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.byAddr[addr.String()]; ok {
		s.order.Remove(el)
		delete(s.byAddr, addr.String())
	}
}

// Len reports how many Connections the store currently holds.
func (s *connectionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byAddr)
}

// remainingCapacity reports how many more Connections can be inserted
// before GetOrCreate must evict or fail.
func (s *connectionStore) remainingCapacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity - len(s.byAddr)
}

// evictOneLocked removes the least-recently-touched entry whose
// Connection is garbage (no session, no in-flight handshake) or idle past
// idleThreshold. It reports whether anything was evicted. Callers must
// hold s.mu.
func (s *connectionStore) evictOneLocked(clock MonotonicClock, idleThreshold int64) bool {
	now := clock.NowNanos()
	for el := s.order.Back(); el != nil; el = el.Prev() {
		entry := el.Value.(*storeEntry)
		idleFor := now - entry.conn.lastActivity.Load()
		if entry.conn.IsGarbage() || idleFor > idleThreshold {
			s.order.Remove(el)
			delete(s.byAddr, entry.addr.String())
			return true
		}
	}
	return false
}

// clear drops every entry, used when the Connector shuts down.
func (s *connectionStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byAddr = make(map[string]*list.Element)
	s.order = list.New()
}
