package quiz

import "sync"

type userLock struct {
	mu   sync.Mutex
	refs int
}

// lockTable hands out one mutex per user. Entries are reference counted and
// removed once unused while the table is larger than threshold.
type lockTable struct {
	mu        sync.Mutex
	locks     map[int64]*userLock
	threshold int
}

func newLockTable(threshold int) *lockTable {
	return &lockTable{locks: make(map[int64]*userLock), threshold: threshold}
}

// lock blocks until the user's mutex is held and returns its release function
func (t *lockTable) lock(userID int64) (unlock func()) {
	t.mu.Lock()
	l, ok := t.locks[userID]
	if !ok {
		l = &userLock{}
		t.locks[userID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		t.mu.Lock()
		l.refs--
		if l.refs == 0 && len(t.locks) > t.threshold {
			delete(t.locks, userID)
		}
		t.mu.Unlock()
	}
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
