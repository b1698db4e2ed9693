package entitlement

import (
	"maps"
	"strings"
	"time"
)

// Watermark is the newest event applied from one provider.
// Events are ordered by timestamp first and event id second.
type Watermark struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Compare orders the watermark against an incoming event.
// It returns -1 when the event is newer, 0 when it is the same event and 1 when it is older.
func (w Watermark) Compare(ts time.Time, eventID string) int {
	switch {
	case w.Timestamp.Before(ts):
		return -1
	case w.Timestamp.After(ts):
		return 1
	case w.EventID < eventID:
		return -1
	case w.EventID > eventID:
		return 1
	}
	return 0
}

// Record is the authoritative entitlement state for one user.
// Tier is derived from ActiveProvider and is not stored on its own.
type Record struct {
	UserID                 string
	ActiveProvider         Provider
	ProviderSubscriptionID string     // empty when ActiveProvider is ProviderNone
	ExpiresAt              *time.Time // nil means no known expiry
	LastEventID            string
	LastEventTimestamp     time.Time
	Watermarks             map[Provider]Watermark
	Version                int64 // 0 for records that were never persisted
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// NewRecord returns the default record for a user that has never been seen.
func NewRecord(userID string, now time.Time) *Record {
	return &Record{
		UserID:         userID,
		ActiveProvider: ProviderNone,
		Watermarks:     make(map[Provider]Watermark),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Tier derives the access level from the active provider.
func (r *Record) Tier() Tier {
	if r == nil || r.ActiveProvider == ProviderNone || r.ActiveProvider == "" {
		return TierFree
	}
	return TierPremium
}

// EntitledAt reports whether the user has premium access at the given instant.
// A grant whose expiry already passed counts as free even before the revoke event arrives.
func (r *Record) EntitledAt(now time.Time) bool {
	if r.Tier() != TierPremium {
		return false
	}
	return r.ExpiresAt == nil || now.Before(*r.ExpiresAt)
}

// Consistent reports whether tier, active provider and subscription id agree.
func (r *Record) Consistent() bool {
	if r.ActiveProvider == ProviderNone {
		return r.ProviderSubscriptionID == "" && r.ExpiresAt == nil
	}
	return r.ActiveProvider.Valid() && r.ProviderSubscriptionID != ""
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.ExpiresAt != nil {
		exp := *r.ExpiresAt
		c.ExpiresAt = &exp
	}
	c.Watermarks = maps.Clone(r.Watermarks)
	if c.Watermarks == nil {
		c.Watermarks = make(map[Provider]Watermark)
	}
	return &c
}

func (r *Record) grant(provider Provider, subscriptionID string, expiresAt *time.Time) {
	r.ActiveProvider = provider
	r.ProviderSubscriptionID = subscriptionID
	r.ExpiresAt = nil
	if expiresAt != nil {
		exp := *expiresAt
		r.ExpiresAt = &exp
	}
}

func (r *Record) revoke() {
	r.ActiveProvider = ProviderNone
	r.ProviderSubscriptionID = ""
	r.ExpiresAt = nil
}

// manualEventPrefix marks LastEventID values written by Engine.Override.
const manualEventPrefix = "manual:"

// overridden reports whether the last change came from an operator override.
func (r *Record) overridden() bool {
	return strings.HasPrefix(r.LastEventID, manualEventPrefix)
}

func (r *Record) markEvent(eventID string, ts time.Time) {
	r.LastEventID = eventID
	r.LastEventTimestamp = ts
}
