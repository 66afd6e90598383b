package store

import "sync"

// SessionLocks hands out one mutex per session id so that turn writes
// within a session are serialized while different sessions proceed
// independently.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// Acquire locks the mutex for sessionID, creating it on first use.
// The caller must call the returned release function.
func (s *SessionLocks) Acquire(sessionID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
