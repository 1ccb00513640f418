package memory

// LockCount expone cuántos productos tienen un semáforo vivo.
func (s *Store) LockCount() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}
