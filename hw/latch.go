package hw

import "sync"

// Latch is a set of single-slot interrupt flags, one per line. Raise never
// blocks; a second Raise before the Wait is folded into the first.
type Latch struct {
	mu    sync.Mutex
	lines map[int]chan struct{}
}

func NewLatch() *Latch {
	return &Latch{lines: make(map[int]chan struct{})}
}

func (l *Latch) slot(line int) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.lines[line]
	if !ok {
		ch = make(chan struct{}, 1)
		l.lines[line] = ch
	}
	return ch
}

// Raise marks line as pending.
func (l *Latch) Raise(line int) {
	select {
	case l.slot(line) <- struct{}{}:
	default:
	}
}

// Wait blocks until line is pending and clears it.
func (l *Latch) Wait(line int) {
	<-l.slot(line)
}

// Pending reports whether line has an unconsumed interrupt.
func (l *Latch) Pending(line int) bool {
	return len(l.slot(line)) > 0
}
