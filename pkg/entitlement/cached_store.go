package entitlement

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore fronts another Store with a bounded LRU of recently read records.
// It is only coherent when every write for a user goes through the same instance.
//
// A read that misses fills the cache only if no write went through the store
// while the backing read was in flight, so a slow read can never overwrite a
// newer record cached by Save.
type CachedStore struct {
	next  Store
	cache *lru.Cache[string, *Record]

	mu    sync.Mutex
	epoch uint64 // bumped by every Save, successful or not
}

// NewCachedStore wraps next with an LRU holding up to size records.
func NewCachedStore(next Store, size int) (*CachedStore, error) {
	if next == nil {
		return nil, ErrStoreNotDefined
	}
	cache, err := lru.New[string, *Record](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{next: next, cache: cache}, nil
}

func (s *CachedStore) Get(ctx context.Context, userID string) (*Record, error) {
	if rec, ok := s.cache.Get(userID); ok {
		return rec.Clone(), nil
	}

	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	rec, err := s.next.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return rec, nil
	}
	if cached, ok := s.cache.Peek(userID); ok && cached.Version >= rec.Version {
		return rec, nil
	}
	s.cache.Add(userID, rec.Clone())
	return rec, nil
}

func (s *CachedStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil {
		return ErrMissingUserID
	}
	err := s.next.Save(ctx, rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	if err != nil {
		// The stored version is unknown after a failed write.
		s.cache.Remove(rec.UserID)
		return err
	}
	s.cache.Add(rec.UserID, rec.Clone())
	return nil
}

// Len reports the number of cached records.
func (s *CachedStore) Len() int {
	return s.cache.Len()
}
