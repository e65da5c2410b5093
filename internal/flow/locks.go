package flow

import "sync"

// SenderLocks serializes work per sender ID. Entries are reference counted and
// removed once no goroutine holds or waits on them.
type SenderLocks struct {
	mu    sync.Mutex
	locks map[string]*senderLock
}

type senderLock struct {
	mu   sync.Mutex
	refs int
}

// NewSenderLocks creates an empty lock set.
func NewSenderLocks() *SenderLocks {
	return &SenderLocks{locks: make(map[string]*senderLock)}
}

// Lock blocks until the sender's lock is held and returns the function that releases it.
func (l *SenderLocks) Lock(senderID string) (unlock func()) {
	l.mu.Lock()
	sl, ok := l.locks[senderID]
	if !ok {
		sl = &senderLock{}
		l.locks[senderID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			sl.mu.Unlock()
			l.mu.Lock()
			sl.refs--
			if sl.refs == 0 {
				delete(l.locks, senderID)
			}
			l.mu.Unlock()
		})
	}
}

// Len returns the number of senders currently holding or waiting on a lock.
func (l *SenderLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
