package invitesdk

import "sync"

// Loop runs posted functions one at a time, in order, on a single
// goroutine. State owned by loop tasks needs no locking.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

func NewLoop() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// Post queues fn for a later turn. It reports false once the loop is closed,
// in which case fn never runs.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it. It must not be called from a
// loop task.
func (l *Loop) Call(fn func()) {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return
	}
	select {
	case <-ran:
	case <-l.done:
	}
}

// Close stops accepting work, runs what is already queued and waits for the
// loop to exit. It must not be called from a loop task.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			closed := l.closed
			l.mu.Unlock()
			if closed {
				return
			}
			<-l.wake
			continue
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}

// Async runs work on its own goroutine and posts then, with work's result,
// back to the loop. then is dropped if the loop has closed meanwhile.
func Async[T any](l *Loop, work func() (T, error), then func(T, error)) {
	go func() {
		v, err := work()
		l.Post(func() { then(v, err) })
	}()
}
