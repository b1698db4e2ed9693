package quota_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/pkg/quota"
)

// runLedgerContract exercises the behaviour every Ledger backend must share.
func runLedgerContract(t *testing.T, newLedger func(t *testing.T) quota.Ledger) {
	t.Helper()
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)

	t.Run("boundary at limit five", func(t *testing.T) {
		l := newLedger(t)
		key := quota.NewKey("u-boundary", "solver", day, time.UTC)

		for i := int64(1); i <= 5; i++ {
			count, allowed, err := l.Consume(ctx, key, 5)
			require.NoError(t, err)
			assert.True(t, allowed, "call %d", i)
			assert.Equal(t, i, count)
		}

		count, allowed, err := l.Consume(ctx, key, 5)
		require.NoError(t, err)
		assert.False(t, allowed, "sixth call is denied")
		assert.Equal(t, int64(5), count)

		got, err := l.Count(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(5), got, "denied calls do not mutate")
	})

	t.Run("parallel callers never exceed limit", func(t *testing.T) {
		l := newLedger(t)
		key := quota.NewKey("u-parallel", "summarizer", day, time.UTC)
		const limit, callers = 7, 64

		var successes atomic.Int64
		var wg sync.WaitGroup
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, allowed, err := l.Consume(ctx, key, limit)
				assert.NoError(t, err)
				if allowed {
					successes.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(limit), successes.Load())
		got, err := l.Count(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(limit), got)
	})

	t.Run("day rollover starts a fresh counter", func(t *testing.T) {
		l := newLedger(t)
		today := quota.NewKey("u-rollover", "solver", day, time.UTC)
		tomorrow := quota.NewKey("u-rollover", "solver", day.Add(24*time.Hour), time.UTC)

		for range 3 {
			_, _, err := l.Consume(ctx, today, 3)
			require.NoError(t, err)
		}
		_, allowed, err := l.Consume(ctx, today, 3)
		require.NoError(t, err)
		require.False(t, allowed)

		count, allowed, err := l.Consume(ctx, tomorrow, 3)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, int64(1), count)
	})

	t.Run("features and users are independent", func(t *testing.T) {
		l := newLedger(t)
		a := quota.NewKey("u-a", "solver", day, time.UTC)
		b := quota.NewKey("u-a", "summarizer", day, time.UTC)
		c := quota.NewKey("u-c", "solver", day, time.UTC)

		_, _, err := l.Consume(ctx, a, 1)
		require.NoError(t, err)
		for _, k := range []quota.Key{b, c} {
			_, allowed, err := l.Consume(ctx, k, 1)
			require.NoError(t, err)
			assert.True(t, allowed, k.String())
		}
	})

	t.Run("non-positive limit is denied without a counter", func(t *testing.T) {
		l := newLedger(t)
		key := quota.NewKey("u-zero", "solver", day, time.UTC)

		count, allowed, err := l.Consume(ctx, key, 0)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Zero(t, count)

		got, err := l.Count(ctx, key)
		require.NoError(t, err)
		assert.Zero(t, got)
	})

	t.Run("reset clears the counter", func(t *testing.T) {
		l := newLedger(t)
		key := quota.NewKey("u-reset", "solver", day, time.UTC)
		_, _, err := l.Consume(ctx, key, 1)
		require.NoError(t, err)

		require.NoError(t, l.Reset(ctx, key))
		_, allowed, err := l.Consume(ctx, key, 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("invalid key", func(t *testing.T) {
		l := newLedger(t)
		_, _, err := l.Consume(ctx, quota.Key{UserID: "u"}, 5)
		assert.ErrorIs(t, err, quota.ErrInvalidKey)
		_, err = l.Count(ctx, quota.Key{})
		assert.ErrorIs(t, err, quota.ErrInvalidKey)
		assert.ErrorIs(t, l.Reset(ctx, quota.Key{}), quota.ErrInvalidKey)
	})
}
