package gate

import (
	"errors"
	"time"

	"github.com/dmitrymomot/paygate/pkg/entitlement"
)

// Unlimited marks Limit and Remaining for users who bypass the ledger.
const Unlimited int64 = -1

// Decision is the answer to "may this user use this feature now".
type Decision struct {
	Feature   string           `json:"feature"`
	Allowed   bool             `json:"allowed"`
	Tier      entitlement.Tier `json:"tier"`
	Limit     int64            `json:"limit"`
	Used      int64            `json:"used"`
	Remaining int64            `json:"remaining"`
	// ResetAt is the start of the next quota day. Zero for unlimited decisions.
	ResetAt time.Time `json:"reset_at,omitzero"`
}

// Unlimited reports whether the decision bypassed the ledger.
func (d Decision) Unlimited() bool {
	return d.Remaining == Unlimited
}

// ResultLabel names the decision for metrics and logs: premium, allowed, denied or error.
func ResultLabel(d Decision, err error) string {
	switch {
	case err != nil:
		return "error"
	case d.Unlimited():
		return "premium"
	case d.Allowed:
		return "allowed"
	default:
		return "denied"
	}
}

// UnknownFeatureLabel replaces caller-supplied feature names that are not configured.
const UnknownFeatureLabel = "unknown"

// FeatureLabel names the decision's feature for metrics. Only configured
// features pass through; anything rejected as unknown collapses into
// UnknownFeatureLabel so request paths cannot mint new series.
func FeatureLabel(d Decision, err error) string {
	if errors.Is(err, ErrUnknownFeature) || d.Feature == "" {
		return UnknownFeatureLabel
	}
	return d.Feature
}

func denied(feature string) Decision {
	return Decision{Feature: feature, Tier: entitlement.TierFree}
}

func unlimited(feature string) Decision {
	return Decision{
		Feature:   feature,
		Allowed:   true,
		Tier:      entitlement.TierPremium,
		Limit:     Unlimited,
		Remaining: Unlimited,
	}
}
