package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/paygate/pkg/entitlement"
	"github.com/dmitrymomot/paygate/pkg/logger"
	"github.com/dmitrymomot/paygate/pkg/quota"
)

// EntitlementReader returns the current record for a user.
// *entitlement.Engine satisfies it and returns a free default for unknown users.
type EntitlementReader interface {
	Get(ctx context.Context, userID string) (*entitlement.Record, error)
}

// DecisionHook observes every decision. err is non-nil when the gate failed closed.
type DecisionHook func(ctx context.Context, userID string, d Decision, err error)

// Gate combines entitlements and the quota ledger into allow/deny decisions.
// Any failure denies access.
type Gate struct {
	entitlements EntitlementReader
	ledger       quota.Ledger
	limits       quota.Limits
	loc          *time.Location
	now          func() time.Time
	log          *slog.Logger
	hooks        []DecisionHook
}

// Option configures a Gate.
type Option func(*Gate)

// WithLocation sets the reference timezone for quota days. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(g *Gate) {
		if loc != nil {
			g.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// WithDecisionHook registers a callback invoked after each CheckAndConsume.
func WithDecisionHook(h DecisionHook) Option {
	return func(g *Gate) {
		if h != nil {
			g.hooks = append(g.hooks, h)
		}
	}
}

// New creates a Gate. limits must pass quota.Limits.Validate.
func New(entitlements EntitlementReader, ledger quota.Ledger, limits quota.Limits, opts ...Option) (*Gate, error) {
	if entitlements == nil {
		return nil, ErrEntitlementsNotProvided
	}
	if ledger == nil {
		return nil, ErrLedgerNotProvided
	}
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	g := &Gate{
		entitlements: entitlements,
		ledger:       ledger,
		limits:       limits,
		loc:          time.UTC,
		now:          time.Now,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CheckAndConsume decides whether userID may use feature and, for free users,
// records one use when allowed. Premium users never touch the ledger.
// On error the returned Decision is always a denial.
func (g *Gate) CheckAndConsume(ctx context.Context, userID, feature string) (Decision, error) {
	d, err := g.decide(ctx, userID, feature, true)
	for _, h := range g.hooks {
		h(ctx, userID, d, err)
	}
	return d, err
}

// Peek reports the decision CheckAndConsume would make without consuming.
func (g *Gate) Peek(ctx context.Context, userID, feature string) (Decision, error) {
	return g.decide(ctx, userID, feature, false)
}

// Usage returns a Peek decision for every configured feature, sorted by feature key.
func (g *Gate) Usage(ctx context.Context, userID string) ([]Decision, error) {
	features := g.limits.Features()
	out := make([]Decision, 0, len(features))
	for _, f := range features {
		d, err := g.decide(ctx, userID, f, false)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Reset clears today's counter for userID and feature.
func (g *Gate) Reset(ctx context.Context, userID, feature string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	if _, ok := g.limits.Limit(feature); !ok {
		return errors.Join(ErrUnknownFeature, errors.New(feature))
	}
	if err := g.ledger.Reset(ctx, quota.NewKey(userID, feature, g.now(), g.loc)); err != nil {
		return errors.Join(ErrLedgerUnavailable, err)
	}
	g.log.InfoContext(ctx, "quota counter reset",
		logger.Component("gate"),
		logger.UserID(userID),
		logger.Feature(feature),
	)
	return nil
}

func (g *Gate) decide(ctx context.Context, userID, feature string, consume bool) (Decision, error) {
	if userID == "" {
		return denied(feature), ErrMissingUserID
	}
	limit, ok := g.limits.Limit(feature)
	if !ok {
		return denied(feature), errors.Join(ErrUnknownFeature, errors.New(feature))
	}

	rec, err := g.entitlements.Get(ctx, userID)
	if err != nil {
		g.failClosed(ctx, userID, feature, err)
		return denied(feature), errors.Join(ErrEntitlementUnavailable, err)
	}

	now := g.now()
	if rec.EntitledAt(now) {
		return unlimited(feature), nil
	}

	key := quota.NewKey(userID, feature, now, g.loc)
	var (
		used    int64
		allowed bool
	)
	if consume {
		used, allowed, err = g.ledger.Consume(ctx, key, limit)
	} else {
		used, err = g.ledger.Count(ctx, key)
		allowed = used < limit
	}
	if err != nil {
		g.failClosed(ctx, userID, feature, err)
		return denied(feature), errors.Join(ErrLedgerUnavailable, err)
	}

	return Decision{
		Feature:   feature,
		Allowed:   allowed,
		Tier:      entitlement.TierFree,
		Limit:     limit,
		Used:      used,
		Remaining: max(limit-used, 0),
		ResetAt:   nextDay(now, g.loc),
	}, nil
}

func (g *Gate) failClosed(ctx context.Context, userID, feature string, err error) {
	g.log.WarnContext(ctx, "feature gate failed closed",
		logger.Component("gate"),
		logger.UserID(userID),
		logger.Feature(feature),
		logger.Error(err),
	)
}

// nextDay returns midnight after now in loc.
func nextDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}
