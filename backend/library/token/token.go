// Package token issues and validates the short-lived credentials that gate
// chunk reads and writes. A token is bound to one (fileID, chunkHash) pair and
// one action; it is never stored alongside any long-lived entity and dies by
// TTL eviction alone.
package token

import (
	"errors"
	"sync"
	"time"

	"chunkvault/backend/common"
)

type Action string

const (
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
)

const redisKeyPrefix = "chunk_token:"

var ErrRedisUnavailable = errors.New("token store: redis write failed")

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Store keeps tokens in Redis when it is enabled and falls back to an
// in-process expiring map otherwise. Validation is a pure read plus an expiry
// comparison, so no locking is needed beyond the fallback map's mutex.
type Store struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Issue creates a token bound to (fileID, hash, action) with an absolute
// expiry of now+ttl and returns its opaque value.
func (s *Store) Issue(fileID string, hash string, action Action, ttl time.Duration) (string, error) {
	tok := common.GetUUID()
	value := string(action) + ":" + fileID + ":" + hash

	if common.RedisEnabled {
		if err := common.RedisSet(redisKeyPrefix+tok, value, ttl); err != nil {
			return "", ErrRedisUnavailable
		}
		return tok, nil
	}

	s.mu.Lock()
	s.sweepLocked()
	s.entries[tok] = memoryEntry{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return tok, nil
}

// Validate reports whether tok is unexpired and was issued for exactly this
// (fileID, hash, action) triple. Tokens are not consumed on success; expiry is
// the only eviction.
func (s *Store) Validate(tok string, fileID string, hash string, action Action) bool {
	if tok == "" {
		return false
	}
	want := string(action) + ":" + fileID + ":" + hash

	if common.RedisEnabled {
		got, err := common.RedisGet(redisKeyPrefix + tok)
		if err != nil {
			return false
		}
		return got == want
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[tok]
	if !ok {
		return false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, tok)
		return false
	}
	return entry.value == want
}

// sweepLocked drops expired fallback entries so the map does not grow without
// bound under a long-lived process. Callers hold s.mu.
func (s *Store) sweepLocked() {
	if len(s.entries) < 1024 {
		return
	}
	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
