package entitlement

// Tier is the access level derived from a Record. It is never stored independently.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPremium
}

// Provider identifies the source that currently grants an entitlement.
type Provider string

const (
	ProviderNone      Provider = "none"
	ProviderProcessor Provider = "processor" // direct card-processor webhooks (Stripe, Paddle)
	ProviderRelay     Provider = "relay"     // cross-platform billing relay (RevenueCat)
	ProviderManual    Provider = "manual"    // admin override, never produced by webhooks
)

// Valid reports whether p is a known provider value.
func (p Provider) Valid() bool {
	switch p {
	case ProviderNone, ProviderProcessor, ProviderRelay, ProviderManual:
		return true
	}
	return false
}

// Webhook reports whether p may emit commands through the webhook pipeline.
func (p Provider) Webhook() bool {
	return p == ProviderProcessor || p == ProviderRelay
}

// Action is the normalized entitlement verb carried by a Command.
type Action string

const (
	ActionGrant  Action = "grant"
	ActionRevoke Action = "revoke"
	ActionIgnore Action = "ignore"
)

// Outcome describes what applying a command did to a record.
type Outcome string

const (
	// OutcomeApplied means the command changed the entitlement.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate means the exact event was already applied.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeStale means a newer event from the same provider was already applied.
	OutcomeStale Outcome = "stale"
	// OutcomeSuperseded means a grant lost to a newer grant from another provider.
	OutcomeSuperseded Outcome = "superseded"
	// OutcomeNotAuthoritative means a revoke came from a provider that does not hold the entitlement.
	OutcomeNotAuthoritative Outcome = "not_authoritative"
	// OutcomeIgnored means the command carried ActionIgnore.
	OutcomeIgnored Outcome = "ignored"
)

// changesState reports whether the record must be persisted after this outcome.
// Superseded and not-authoritative commands still advance the provider watermark.
func (o Outcome) changesState() bool {
	switch o {
	case OutcomeApplied, OutcomeSuperseded, OutcomeNotAuthoritative:
		return true
	}
	return false
}
