package state

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"groupbot/core/dialog/route"
)

// DefaultTTL bounds how long an idle conversation keeps its state. A stale
// awaited-input route must not fire days after the user walked away.
const DefaultTTL = 72 * time.Hour

type memoryStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewMemoryStore builds an in-process Store with the given idle TTL.
// ttl <= 0 selects DefaultTTL. Every write refreshes the expiry.
func NewMemoryStore(ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &memoryStore{
		cache: gocache.New(ttl, ttl/4),
	}
}

func (s *memoryStore) record(key Key) *Record {
	if v, ok := s.cache.Get(key.String()); ok {
		if rec, ok := v.(*Record); ok {
			return rec
		}
	}
	return nil
}

// mutate applies fn to a copy of the record and stores the result, refreshing
// the TTL. The mutex keeps read-modify-write atomic per store; contention is
// negligible since one user drives one conversation at a time.
func (s *memoryStore) mutate(key Key, fn func(rec *Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(key)
	if rec == nil {
		rec = &Record{}
	} else {
		clone := Record{InputRoute: rec.InputRoute}
		if len(rec.Context) > 0 {
			clone.Context = make(map[string]int64, len(rec.Context))
			for k, v := range rec.Context {
				clone.Context[k] = v
			}
		}
		rec = &clone
	}
	fn(rec)
	s.cache.Set(key.String(), rec, gocache.DefaultExpiration)
}

func (s *memoryStore) AwaitedInput(_ context.Context, key Key) (route.Route, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(key)
	if rec == nil || rec.InputRoute == nil {
		return route.Route{}, false, nil
	}
	return *rec.InputRoute, true, nil
}

func (s *memoryStore) SetAwaitedInput(_ context.Context, key Key, r route.Route) error {
	s.mutate(key, func(rec *Record) {
		rec.InputRoute = &r
	})
	return nil
}

func (s *memoryStore) ClearAwaitedInput(_ context.Context, key Key) error {
	s.mutate(key, func(rec *Record) {
		rec.InputRoute = nil
	})
	return nil
}

func (s *memoryStore) ContextValue(_ context.Context, key Key, field string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(key)
	if rec == nil {
		return 0, false, nil
	}
	v, ok := rec.Context[field]
	return v, ok, nil
}

func (s *memoryStore) SetContextValue(_ context.Context, key Key, field string, value int64) error {
	s.mutate(key, func(rec *Record) {
		if rec.Context == nil {
			rec.Context = make(map[string]int64, 1)
		}
		rec.Context[field] = value
	})
	return nil
}
