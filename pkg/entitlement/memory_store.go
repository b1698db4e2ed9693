package entitlement

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Writes are serialized per user only.
type MemoryStore struct {
	records sync.Map // map[string]*memoryEntry
}

type memoryEntry struct {
	mu  sync.Mutex
	rec *Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := s.records.Load(userID)
	if !ok {
		return nil, ErrRecordNotFound
	}
	e := v.(*memoryEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec == nil {
		return nil, ErrRecordNotFound
	}
	return e.rec.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil || rec.UserID == "" {
		return ErrMissingUserID
	}
	v, _ := s.records.LoadOrStore(rec.UserID, &memoryEntry{})
	e := v.(*memoryEntry)
	e.mu.Lock()
	defer e.mu.Unlock()

	var current int64
	if e.rec != nil {
		current = e.rec.Version
	}
	if current != rec.Version {
		return ErrConflict
	}

	stored := rec.Clone()
	stored.Version = current + 1
	e.rec = stored
	rec.Version = stored.Version
	return nil
}
