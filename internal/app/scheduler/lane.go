package scheduler

import "sync"

// lane is an unbounded FIFO of fired triggers drained by one worker.
// push never blocks, so the clock loop is never held up by a slow action.
type lane struct {
	mu     sync.Mutex
	items  []Trigger
	notify chan struct{}
}

func newLane() *lane {
	return &lane{notify: make(chan struct{}, 1)}
}

func (l *lane) push(t Trigger) {
	l.mu.Lock()
	l.items = append(l.items, t)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// kick signals the worker if triggers are waiting. A worker stopped after
// draining notify leaves them without a pending signal.
func (l *lane) kick() {
	if l.len() == 0 {
		return
	}
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *lane) pop() (Trigger, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		return Trigger{}, false
	}
	t := l.items[0]
	l.items[0] = Trigger{}
	l.items = l.items[1:]
	return t, true
}

func (l *lane) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
