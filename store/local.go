package store

import "sync"

// LocalStore keeps the block set in process memory. This is the default
// backend; a single mutex serializes all access.
type LocalStore struct {
	mu     sync.RWMutex
	blocks map[string]BlockInfo
}

func NewLocalStore() *LocalStore {
	return &LocalStore{blocks: make(map[string]BlockInfo)}
}

func (s *LocalStore) IsBlocked(ip string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[ip]
	return ok
}

func (s *LocalStore) Block(ip string, info BlockInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[ip] = info
}

// Unblock removes ip from the set. Removing an absent entry is a no-op.
func (s *LocalStore) Unblock(ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, ip)
	return nil
}

func (s *LocalStore) ListBlocks() (map[string]BlockInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]BlockInfo, len(s.blocks))
	for ip, info := range s.blocks {
		out[ip] = info
	}
	return out, nil
}
