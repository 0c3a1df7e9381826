package service

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// userLocks hands out one weighted semaphore per user id so read-modify-write
// cycles of the same user never interleave. Entries are dropped once no
// caller holds or waits for them.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// acquire blocks until the user's lock is held or ctx is done. The returned
// func releases it.
func (l *userLocks) acquire(ctx context.Context, userID string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &userLock{sem: semaphore.NewWeighted(1)}
		l.locks[userID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	if err := lock.sem.Acquire(ctx, 1); err != nil {
		l.drop(userID, lock)
		return nil, err
	}
	return func() {
		lock.sem.Release(1)
		l.drop(userID, lock)
	}, nil
}

func (l *userLocks) drop(userID string, lock *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, userID)
	}
}

// size is the number of users with a live lock entry.
func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
