package entitlement_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/pkg/entitlement"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("get unknown user", func(t *testing.T) {
		t.Parallel()
		_, err := entitlement.NewMemoryStore().Get(ctx, "nobody")
		assert.ErrorIs(t, err, entitlement.ErrRecordNotFound)
	})

	t.Run("compare and set", func(t *testing.T) {
		t.Parallel()
		s := entitlement.NewMemoryStore()

		rec := entitlement.NewRecord("u1", time.Now())
		require.NoError(t, s.Save(ctx, rec))
		assert.Equal(t, int64(1), rec.Version)

		stale := entitlement.NewRecord("u1", time.Now())
		assert.ErrorIs(t, s.Save(ctx, stale), entitlement.ErrConflict, "second insert conflicts")

		a, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		b, err := s.Get(ctx, "u1")
		require.NoError(t, err)

		a.ActiveProvider = entitlement.ProviderRelay
		a.ProviderSubscriptionID = "S1"
		require.NoError(t, s.Save(ctx, a))
		assert.Equal(t, int64(2), a.Version)

		assert.ErrorIs(t, s.Save(ctx, b), entitlement.ErrConflict)

		got, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, entitlement.ProviderRelay, got.ActiveProvider)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		t.Parallel()
		s := entitlement.NewMemoryStore()
		rec := entitlement.NewRecord("u1", time.Now())
		require.NoError(t, s.Save(ctx, rec))

		rec.ActiveProvider = entitlement.ProviderProcessor
		got, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, entitlement.ProviderNone, got.ActiveProvider)
	})

	t.Run("only one concurrent writer wins per version", func(t *testing.T) {
		t.Parallel()
		s := entitlement.NewMemoryStore()
		require.NoError(t, s.Save(ctx, entitlement.NewRecord("u1", time.Now())))

		var wins atomic.Int64
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec := entitlement.NewRecord("u1", time.Now())
				rec.Version = 1
				if s.Save(ctx, rec) == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int64(1), wins.Load())
	})

	t.Run("missing user id", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, entitlement.NewMemoryStore().Save(ctx, &entitlement.Record{}), entitlement.ErrMissingUserID)
	})
}
