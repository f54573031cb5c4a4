package booking

import (
	"context"
	"strings"
	"sync"
)

// workerLocks hands out one lock per worker. Entries are reference counted
// and dropped when unused.
type workerLocks struct {
	mu    sync.Mutex
	locks map[string]*workerLock
}

// workerLock is a one-slot semaphore so waiters can give up on ctx.
type workerLock struct {
	sem  chan struct{}
	refs int
}

// Lock acquires the worker's lock and returns its release function. It
// returns ctx.Err() if ctx ends first.
func (w *workerLocks) Lock(ctx context.Context, workerID string) (func(), error) {
	key := strings.ToLower(workerID)
	w.mu.Lock()
	if w.locks == nil {
		w.locks = make(map[string]*workerLock)
	}
	l, ok := w.locks[key]
	if !ok {
		l = &workerLock{sem: make(chan struct{}, 1)}
		w.locks[key] = l
	}
	l.refs++
	w.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		w.release(key, l)
		return nil, ctx.Err()
	}
	return func() {
		<-l.sem
		w.release(key, l)
	}, nil
}

func (w *workerLocks) release(key string, l *workerLock) {
	w.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(w.locks, key)
	}
	w.mu.Unlock()
}
