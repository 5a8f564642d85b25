package service

import (
	"context"
	"sync"
)

// ticketLocks hands out one exclusive lock per ticket id. Entries are
// reference counted and dropped once nobody holds or waits on them.
type ticketLocks struct {
	mu    sync.Mutex
	locks map[string]*ticketLock
}

type ticketLock struct {
	sem  chan struct{}
	refs int
}

func newTicketLocks() *ticketLocks {
	return &ticketLocks{locks: make(map[string]*ticketLock)}
}

// acquire blocks until the ticket is free or ctx is done.
func (l *ticketLocks) acquire(ctx context.Context, id string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &ticketLock{sem: make(chan struct{}, 1)}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-entry.sem
				l.release(id, entry)
			})
		}, nil
	case <-ctx.Done():
		l.release(id, entry)
		return nil, ctx.Err()
	}
}

func (l *ticketLocks) release(id string, entry *ticketLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, id)
	}
}

func (l *ticketLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
