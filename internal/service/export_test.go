package service

// LockCount exposes the number of live per-id locks to external tests.
func (s *Store) LockCount() int { return s.lockCount() }
