package quota

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type memoryCounter struct {
	count      atomic.Int64
	lastAccess atomic.Int64 // unix nanoseconds
}

// MemoryLedger keeps counters in process memory. Counters for one key are
// updated lock-free, so callers for different keys never contend.
type MemoryLedger struct {
	counters sync.Map // map[Key]*memoryCounter

	retention       time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// MemoryLedgerOption configures a MemoryLedger.
type MemoryLedgerOption func(*MemoryLedger)

// WithCleanupInterval sets how often idle counters are evicted. Zero disables cleanup.
func WithCleanupInterval(interval time.Duration) MemoryLedgerOption {
	return func(l *MemoryLedger) {
		l.cleanupInterval = interval
	}
}

// WithRetention sets how long an untouched counter is kept. It must exceed one day
// so the current day's counters are never evicted.
func WithRetention(d time.Duration) MemoryLedgerOption {
	return func(l *MemoryLedger) {
		if d > 24*time.Hour {
			l.retention = d
		}
	}
}

// NewMemoryLedger creates an in-memory ledger and starts its cleanup loop.
func NewMemoryLedger(opts ...MemoryLedgerOption) *MemoryLedger {
	l := &MemoryLedger{
		retention:       48 * time.Hour,
		cleanupInterval: 10 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cleanupInterval > 0 {
		go l.cleanup()
	}
	return l
}

func (l *MemoryLedger) Consume(ctx context.Context, key Key, limit int64) (int64, bool, error) {
	if err := key.Validate(); err != nil {
		return 0, false, err
	}
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	if limit <= 0 {
		return 0, false, nil
	}

	v, _ := l.counters.LoadOrStore(key, &memoryCounter{})
	c := v.(*memoryCounter)
	c.lastAccess.Store(time.Now().UnixNano())

	for {
		current := c.count.Load()
		if current >= limit {
			return current, false, nil
		}
		if c.count.CompareAndSwap(current, current+1) {
			return current + 1, true, nil
		}
	}
}

func (l *MemoryLedger) Count(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	v, ok := l.counters.Load(key)
	if !ok {
		return 0, nil
	}
	return v.(*memoryCounter).count.Load(), nil
}

func (l *MemoryLedger) Reset(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	l.counters.Delete(key)
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (l *MemoryLedger) Close() {
	l.closeOnce.Do(func() { close(l.stopCleanup) })
}

func (l *MemoryLedger) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.removeStale(time.Now())
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *MemoryLedger) removeStale(now time.Time) {
	threshold := now.Add(-l.retention).UnixNano()
	l.counters.Range(func(k, v any) bool {
		if v.(*memoryCounter).lastAccess.Load() < threshold {
			l.counters.Delete(k)
		}
		return true
	})
}
