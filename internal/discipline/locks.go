package discipline

import "sync"

// sessionLocks serializes all mutations to one (user, day) session.
// Evaluating two trades saved concurrently for the same user and day must
// not race on counters, the violated-rule set, or state escalation.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for a (user, day) key and returns its unlock
// function. Lock entries are never evicted; the key space is bounded by
// active users times trading days in a process lifetime.
func (l *sessionLocks) acquire(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
