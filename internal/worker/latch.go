package worker

import "sync"

// latch is a resettable broadcast signal. Waiters receive from C; every
// waiter holding the channel is released when the latch is set.
type latch struct {
	mu  sync.Mutex
	ch  chan struct{}
	set bool
}

func newLatch() *latch {
	return &latch{ch: make(chan struct{})}
}

func (l *latch) Set() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.set {
		close(l.ch)
		l.set = true
	}
}

func (l *latch) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.set {
		l.ch = make(chan struct{})
		l.set = false
	}
}

func (l *latch) IsSet() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set
}

// C returns the channel for the current latch generation.
func (l *latch) C() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch
}
