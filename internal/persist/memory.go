package persist

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage is a process-local Storage used when no database is configured.
type MemoryStorage struct {
	mu       sync.RWMutex
	entries  map[string]map[string][]byte
	lastSeen map[string]time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries:  make(map[string]map[string][]byte),
		lastSeen: make(map[string]time.Time),
	}
}

func (s *MemoryStorage) Get(_ context.Context, sessionID, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[sessionID][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStorage) Set(_ context.Context, sessionID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.entries[sessionID]
	if !ok {
		bucket = make(map[string][]byte)
		s.entries[sessionID] = bucket
	}
	bucket[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStorage) Remove(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries[sessionID], key)
	return nil
}

func (s *MemoryStorage) RemoveAll(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

func (s *MemoryStorage) Touch(_ context.Context, sessionID, _ string) error {
	s.mu.Lock()
	s.lastSeen[sessionID] = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, seen := range s.lastSeen {
		if seen.Before(before) {
			delete(s.lastSeen, id)
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}
