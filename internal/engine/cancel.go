package engine

import "sync"

// CancelSignal is a one-shot cooperative cancellation capability bound to a
// single render. The engine is expected to react to it at bounded intervals;
// signalling does not guarantee an immediate halt of in-flight work.
type CancelSignal struct {
	once sync.Once
	done chan struct{}
}

func NewCancelSignal() *CancelSignal {
	return &CancelSignal{done: make(chan struct{})}
}

// Signal requests cancellation. Safe to call more than once.
func (s *CancelSignal) Signal() {
	s.once.Do(func() { close(s.done) })
}

// Done returns a channel closed when cancellation has been requested.
func (s *CancelSignal) Done() <-chan struct{} {
	return s.done
}

// Cancelled reports whether cancellation has been requested.
func (s *CancelSignal) Cancelled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
