package storage

import (
	"context"
	"sync"
)

// maxMemoryAudits bounds the in-memory audit tail; older entries fall
// off the front.
const maxMemoryAudits = 1000

type memoryStore struct {
	mu     sync.Mutex
	kv     map[string]string
	audits []AuditEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{kv: make(map[string]string)}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.kv[key]
	return v, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = value
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	return nil
}

func (s *memoryStore) AppendAudit(_ context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, e)
	if len(s.audits) > maxMemoryAudits {
		s.audits = s.audits[len(s.audits)-maxMemoryAudits:]
	}
	return nil
}

func (s *memoryStore) Close() error { return nil }
