package portaudiosrv

import (
	"sync"
	"time"

	"github.com/httpsworldview/openmeters/internal/graph"
)

// subscription is the same single-slot "latest wins" mailbox fakeserver
// uses; this adapter never pushes an update after a subscription's initial
// snapshot, so a subscriber only ever sees the snapshot taken when it
// subscribed.
type subscription struct {
	mu     sync.Mutex
	cond   *sync.Cond
	latest *graph.Snapshot
	closed bool
}

func newSubscription() *subscription {
	s := &subscription{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *subscription) push(snap graph.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.latest = &snap
	s.cond.Broadcast()
	return true
}

// RecvTimeout implements audioserver.Subscription.
func (s *subscription) RecvTimeout(timeout time.Duration) (graph.Snapshot, bool) {
	deadline := time.Now().Add(timeout)
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.latest == nil && !s.closed {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return graph.Snapshot{}, false
		}
		timer := time.AfterFunc(remaining, s.cond.Broadcast)
		s.cond.Wait()
		timer.Stop()
	}
	if s.closed || s.latest == nil {
		return graph.Snapshot{}, false
	}
	snap := *s.latest
	s.latest = nil
	return snap, true
}

// Close implements audioserver.Subscription.
func (s *subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
}
