package quota

import "context"

// Ledger stores daily usage counters.
type Ledger interface {
	// Consume increments the counter for key by one if it is below limit.
	// It returns the counter value after the call and whether the increment happened.
	// A limit of zero or less is denied without touching storage and reports a zero count.
	Consume(ctx context.Context, key Key, limit int64) (count int64, allowed bool, err error)
	// Count returns the current counter value, zero when absent.
	Count(ctx context.Context, key Key) (int64, error)
	// Reset deletes the counter. Reserved for operator intervention.
	Reset(ctx context.Context, key Key) error
}
