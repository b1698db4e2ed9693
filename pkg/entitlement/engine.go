package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/paygate/pkg/logger"
)

// Result is the outcome of applying one command.
type Result struct {
	Outcome Outcome
	Record  *Record
	// Attempts counts store round-trips, including the successful one.
	Attempts int
}

// Engine applies entitlement commands to the Store with optimistic concurrency.
// It is safe for concurrent use; callers for the same user are serialized by
// the store's version check, not by a lock.
type Engine struct {
	store       Store
	now         func() time.Time
	backoff     BackoffStrategy
	maxAttempts int
	log         *slog.Logger
	onConflict  func(ctx context.Context, userID string, attempt int)
}

// NewEngine creates an Engine over the given store.
// Panics if store is nil to fail fast during initialization.
func NewEngine(store Store, opts ...EngineOption) *Engine {
	if store == nil {
		panic("entitlement: Store is required")
	}
	e := &Engine{
		store:       store,
		now:         time.Now,
		backoff:     DefaultBackoff(),
		maxAttempts: 5,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply reconciles one normalized command into the user's record.
//
// Replays and older events are no-ops. A revoke only takes effect when it
// comes from the provider that holds the entitlement. Concurrent writers are
// resolved by retrying on ErrConflict; ErrRetriesExhausted is returned when
// contention outlasts the attempt budget.
func (e *Engine) Apply(ctx context.Context, cmd Command) (*Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if cmd.Action == ActionIgnore {
		return &Result{Outcome: OutcomeIgnored}, nil
	}

	rec, outcome, attempts, err := e.mutate(ctx, cmd.UserID, func(rec *Record, now time.Time) (Outcome, bool) {
		o := reconcile(rec, cmd, now)
		return o, o.changesState()
	})
	if err != nil {
		return nil, err
	}

	e.log.DebugContext(ctx, "entitlement command reconciled",
		logger.Component("entitlement"),
		logger.UserID(cmd.UserID),
		logger.Provider(string(cmd.Provider)),
		logger.EventID(cmd.EventID),
		logger.Action(string(cmd.Action)),
		logger.Outcome(string(outcome)),
		logger.RetryCount(attempts-1),
	)

	return &Result{Outcome: outcome, Record: rec, Attempts: attempts}, nil
}

// Override sets the tier directly, bypassing webhook ordering.
// Premium overrides are held by ProviderManual so that webhook revokes cannot
// clear them; a free override clears whatever provider held the entitlement.
// Either way, provider grants dated before the override are superseded.
func (e *Engine) Override(ctx context.Context, userID string, tier Tier, actor string) (*Record, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if !tier.Valid() {
		return nil, ErrInvalidTier
	}
	if actor == "" {
		return nil, ErrMissingActor
	}

	rec, _, _, err := e.mutate(ctx, userID, func(rec *Record, now time.Time) (Outcome, bool) {
		switch tier {
		case TierPremium:
			rec.grant(ProviderManual, manualEventPrefix+actor, nil)
		default:
			rec.revoke()
		}
		rec.markEvent(manualEventPrefix+uuid.NewString(), now)
		rec.UpdatedAt = now
		return OutcomeApplied, true
	})
	if err != nil {
		return nil, err
	}

	e.log.InfoContext(ctx, "entitlement overridden",
		logger.Component("entitlement"),
		logger.UserID(userID),
		slog.String("tier", string(tier)),
		slog.String("actor", actor),
	)
	return rec, nil
}

// Ensure returns the user's record, persisting the default free record on first access.
func (e *Engine) Ensure(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	rec, _, _, err := e.mutate(ctx, userID, func(rec *Record, _ time.Time) (Outcome, bool) {
		return OutcomeApplied, rec.Version == 0
	})
	return rec, err
}

// Get returns the user's record, or an unsaved default record when none exists.
func (e *Engine) Get(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	rec, err := e.store.Get(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return NewRecord(userID, e.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load entitlement: %w", err)
	}
	return rec, nil
}

// mutate runs a read-modify-CAS loop. fn returns the outcome and whether the record must be saved.
func (e *Engine) mutate(ctx context.Context, userID string, fn func(*Record, time.Time) (Outcome, bool)) (*Record, Outcome, int, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		now := e.now()
		rec, err := e.store.Get(ctx, userID)
		switch {
		case errors.Is(err, ErrRecordNotFound):
			rec = NewRecord(userID, now)
		case err != nil:
			return nil, "", attempt, fmt.Errorf("load entitlement: %w", err)
		}

		outcome, dirty := fn(rec, now)
		if !dirty {
			return rec, outcome, attempt, nil
		}

		err = e.store.Save(ctx, rec)
		if err == nil {
			return rec, outcome, attempt, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, "", attempt, fmt.Errorf("save entitlement: %w", err)
		}

		lastErr = err
		if e.onConflict != nil {
			e.onConflict(ctx, userID, attempt)
		}
		if attempt == e.maxAttempts {
			break
		}
		if wait := e.backoff.NextInterval(attempt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, "", attempt, ctx.Err()
			case <-timer.C:
			}
		}
	}

	e.log.WarnContext(ctx, "entitlement update gave up after conflicts",
		logger.Component("entitlement"),
		logger.UserID(userID),
		logger.RetryCount(e.maxAttempts),
	)
	return nil, "", e.maxAttempts, errors.Join(ErrRetriesExhausted, lastErr)
}
