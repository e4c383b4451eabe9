package credentials

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/tcriess/neowatch/globals"
)

const memoryStoreSize = 16

// MemoryStore keeps the credentials for the lifetime of the process only.
type MemoryStore struct {
	cache *lru.Cache
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock is NewMemoryStore with an injectable clock for the expiry checks.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	cache, err := lru.New(memoryStoreSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &MemoryStore{cache: cache, now: now}
}

func (s *MemoryStore) Lookup(name string) (Entry, bool) {
	v, ok := s.cache.Get(name)
	if !ok {
		return Entry{}, false
	}
	e := v.(Entry)
	if e.expired(s.now()) {
		s.cache.Remove(name)
		globals.AppLogger.Debug("credential expired", "name", name)
		return Entry{}, false
	}
	return e, true
}

func (s *MemoryStore) Get(name string) (string, bool) {
	e, ok := s.Lookup(name)
	return e.Value, ok
}

func (s *MemoryStore) Set(name, value string, opts SetOptions) {
	s.cache.Add(name, newEntry(value, opts, s.now()))
}

func (s *MemoryStore) Remove(name string) {
	s.cache.Remove(name)
}

func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}
