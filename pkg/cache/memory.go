package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tidwall/tinylru"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore é um cache LRU limitado em memória com TTL por entrada.
type MemoryStore struct {
	lru tinylru.LRU
	ttl time.Duration
	// generation muda a cada Flush; entradas antigas viram miss.
	generation atomic.Uint64
	now        func() time.Time
}

// NewMemoryStore cria um cache com capacidade size. ttl == 0 desliga a expiração.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	s := &MemoryStore{ttl: ttl, now: time.Now}
	s.lru.Resize(size)
	return s
}

type memoryKey struct {
	generation uint64
	key        string
}

func (s *MemoryStore) k(key string) memoryKey {
	return memoryKey{generation: s.generation.Load(), key: key}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.lru.Get(s.k(key))
	if !ok {
		return nil, ErrMiss
	}
	entry := v.(memoryEntry)
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.lru.Delete(s.k(key))
		return nil, ErrMiss
	}
	return entry.value, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	entry := memoryEntry{value: value}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.lru.Set(s.k(key), entry)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.lru.Delete(s.k(key))
	return nil
}

// Flush não percorre o LRU: troca a geração e deixa as entradas antigas
// saírem por despejo.
func (s *MemoryStore) Flush(_ context.Context) error {
	s.generation.Add(1)
	return nil
}
