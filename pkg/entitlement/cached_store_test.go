package entitlement_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/pkg/entitlement"
)

// pausingStore blocks the first Get after it has read the backing record,
// until release is closed.
type pausingStore struct {
	*entitlement.MemoryStore
	paused  atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (s *pausingStore) Get(ctx context.Context, userID string) (*entitlement.Record, error) {
	rec, err := s.MemoryStore.Get(ctx, userID)
	if s.paused.CompareAndSwap(false, true) {
		close(s.read)
		<-s.release
	}
	return rec, err
}

// countingStore counts reads that reach the backing store.
type countingStore struct {
	*entitlement.MemoryStore
	gets atomic.Int64
}

func (s *countingStore) Get(ctx context.Context, userID string) (*entitlement.Record, error) {
	s.gets.Add(1)
	return s.MemoryStore.Get(ctx, userID)
}

func TestCachedStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("serves reads from cache after save", func(t *testing.T) {
		t.Parallel()
		inner := &countingStore{MemoryStore: entitlement.NewMemoryStore()}
		s, err := entitlement.NewCachedStore(inner, 16)
		require.NoError(t, err)

		require.NoError(t, s.Save(ctx, entitlement.NewRecord("u1", time.Now())))
		for range 3 {
			rec, err := s.Get(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, int64(1), rec.Version)
		}
		assert.Zero(t, inner.gets.Load())
		assert.Equal(t, 1, s.Len())
	})

	t.Run("conflict evicts entry", func(t *testing.T) {
		t.Parallel()
		inner := &countingStore{MemoryStore: entitlement.NewMemoryStore()}
		s, err := entitlement.NewCachedStore(inner, 16)
		require.NoError(t, err)

		require.NoError(t, s.Save(ctx, entitlement.NewRecord("u1", time.Now())))

		// A write that bypasses the cache makes the cached version stale.
		direct, err := inner.MemoryStore.Get(ctx, "u1")
		require.NoError(t, err)
		direct.ActiveProvider = entitlement.ProviderRelay
		direct.ProviderSubscriptionID = "S1"
		require.NoError(t, inner.MemoryStore.Save(ctx, direct))

		cached, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		assert.ErrorIs(t, s.Save(ctx, cached), entitlement.ErrConflict)
		assert.Zero(t, s.Len())

		fresh, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, entitlement.ProviderRelay, fresh.ActiveProvider)
		assert.Equal(t, int64(1), inner.gets.Load())
	})

	t.Run("engine over cached store", func(t *testing.T) {
		t.Parallel()
		s, err := entitlement.NewCachedStore(entitlement.NewMemoryStore(), 16)
		require.NoError(t, err)
		e := newTestEngine(t, s)

		rec := applyAll(t, e,
			grant(entitlement.ProviderRelay, "rc_1", t0, "S1"),
			revoke(entitlement.ProviderRelay, "rc_2", t0.Add(time.Minute)),
		)
		assert.Equal(t, entitlement.TierFree, rec.Tier())
	})

	t.Run("slow read does not overwrite a newer save", func(t *testing.T) {
		t.Parallel()
		inner := &pausingStore{
			MemoryStore: entitlement.NewMemoryStore(),
			read:        make(chan struct{}),
			release:     make(chan struct{}),
		}
		require.NoError(t, inner.MemoryStore.Save(ctx, entitlement.NewRecord("u1", t0)))

		s, err := entitlement.NewCachedStore(inner, 16)
		require.NoError(t, err)
		e := newTestEngine(t, s)

		type result struct {
			rec *entitlement.Record
			err error
		}
		slow := make(chan result, 1)
		go func() {
			rec, err := s.Get(ctx, "u1")
			slow <- result{rec, err}
		}()
		<-inner.read

		res, err := e.Apply(ctx, grant(entitlement.ProviderRelay, "rc_1", t0, "S1"))
		require.NoError(t, err)
		require.Equal(t, entitlement.OutcomeApplied, res.Outcome)

		close(inner.release)
		old := <-slow
		require.NoError(t, old.err)
		assert.Equal(t, int64(1), old.rec.Version, "the in-flight read saw the old record")

		cached, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, entitlement.TierPremium, cached.Tier())
		assert.Equal(t, int64(2), cached.Version)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		t.Parallel()
		_, err := entitlement.NewCachedStore(nil, 16)
		assert.ErrorIs(t, err, entitlement.ErrStoreNotDefined)
		_, err = entitlement.NewCachedStore(entitlement.NewMemoryStore(), 0)
		assert.Error(t, err)
	})
}
