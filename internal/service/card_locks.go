package service

import (
	"context"
	"sync"
)

// cardLocks serializes work per card UID. Entries are reference counted and
// removed once nobody holds or waits for them, so the map stays bounded by
// the number of cards in flight.
type cardLocks struct {
	mu    sync.Mutex
	locks map[string]*cardLock
}

type cardLock struct {
	sem  chan struct{}
	refs int
}

func newCardLocks() *cardLocks {
	return &cardLocks{locks: make(map[string]*cardLock)}
}

// Lock blocks until the card is free or ctx is done. On success the returned
// func releases the lock and must be called exactly once.
func (l *cardLocks) Lock(ctx context.Context, cardUID string) (func(), error) {
	l.mu.Lock()
	cl, ok := l.locks[cardUID]
	if !ok {
		cl = &cardLock{sem: make(chan struct{}, 1)}
		l.locks[cardUID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	select {
	case cl.sem <- struct{}{}:
		return func() {
			<-cl.sem
			l.release(cardUID, cl)
		}, nil
	case <-ctx.Done():
		l.release(cardUID, cl)
		return nil, ctx.Err()
	}
}

func (l *cardLocks) release(cardUID string, cl *cardLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cl.refs--
	if cl.refs == 0 {
		delete(l.locks, cardUID)
	}
}

// size is the number of live entries.
func (l *cardLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
