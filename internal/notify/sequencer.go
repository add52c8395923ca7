package notify

import "sync"

// Sequencer runs batches of callbacks outside the caller's lock while keeping
// the order in which the batches were queued. The zero value is ready to use.
//
// A caller takes a Ticket while it still holds the lock that orders its
// events, releases that lock, then calls Run. Callbacks must not take a
// ticket of their own on the same Sequencer.
type Sequencer struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64
	serving uint64
}

func (s *Sequencer) Ticket() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.next
	s.next++
	return t
}

// Run waits for ticket's turn and runs fns in order.
func (s *Sequencer) Run(ticket uint64, fns []func()) {
	s.mu.Lock()
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}
	for s.serving != ticket {
		s.cond.Wait()
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.serving++
		s.cond.Broadcast()
		s.mu.Unlock()
	}()
	for _, fn := range fns {
		fn()
	}
}
