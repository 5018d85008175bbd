package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryStore is an in-process ObjectStore used by tests and by ephemeral
// single-node deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) PutObject(ctx context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.GetObjectRange(ctx, key, 0, -1)
}

func (s *MemoryStore) GetObjectRange(ctx context.Context, key string, offset int64, length int64) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	rest := data[offset:]
	if length >= 0 && length < int64(len(rest)) {
		rest = rest[:length]
	}
	return io.NopCloser(bytes.NewReader(rest)), nil
}

func (s *MemoryStore) StatObject(ctx context.Context, key string) (int64, error) {
	s.mu.RLock()
	data, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return 0, ErrObjectNotFound
	}
	return int64(len(data)), nil
}

func (s *MemoryStore) DeleteObject(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}
