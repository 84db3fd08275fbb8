package pgfeed

import (
	"sync"

	"codecollab/internal/feed"
)

// subscription buffers snapshots in an unbounded queue drained by its own
// goroutine, so the notification listener never blocks on a slow consumer.
type subscription struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []feed.Snapshot
	closed bool

	onSnapshot feed.SnapshotFunc
	onError    feed.ErrorFunc
}

func newSubscription(onSnapshot feed.SnapshotFunc, onError feed.ErrorFunc) *subscription {
	s := &subscription{onSnapshot: onSnapshot, onError: onError}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *subscription) enqueue(snap feed.Snapshot) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, snap)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *subscription) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		snap := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.onSnapshot(snap)
	}
}
