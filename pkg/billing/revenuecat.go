package billing

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dmitrymomot/paygate/pkg/entitlement"
)

// RevenueCatVerifier compares the Authorization header configured in the
// RevenueCat dashboard. Both "<secret>" and "Bearer <secret>" are accepted.
type RevenueCatVerifier struct {
	secret string
}

func NewRevenueCatVerifier(secret string) (*RevenueCatVerifier, error) {
	if secret == "" {
		return nil, errors.Join(ErrMissingWebhookSecret, errors.New("revenuecat"))
	}
	return &RevenueCatVerifier{secret: secret}, nil
}

func (v *RevenueCatVerifier) Verify(r *http.Request, _ []byte) error {
	got := r.Header.Get("Authorization")
	if got == "" {
		return ErrMissingSignature
	}
	got = strings.TrimPrefix(got, "Bearer ")
	if subtle.ConstantTimeCompare([]byte(got), []byte(v.secret)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

const revenueCatAnonymousPrefix = "$RCAnonymousID:"

type revenueCatPayload struct {
	Event *revenueCatEvent `json:"event"`
}

type revenueCatEvent struct {
	ID                    string   `json:"id"`
	Type                  string   `json:"type"`
	AppUserID             string   `json:"app_user_id"`
	OriginalAppUserID     string   `json:"original_app_user_id"`
	Aliases               []string `json:"aliases"`
	EventTimestampMs      int64    `json:"event_timestamp_ms"`
	ExpirationAtMs        *int64   `json:"expiration_at_ms"`
	ProductID             string   `json:"product_id"`
	EntitlementIDs        []string `json:"entitlement_ids"`
	Environment           string   `json:"environment"`
	OriginalTransactionID string   `json:"original_transaction_id"`
}

// userID skips anonymous ids, which never match an internal account.
func (e revenueCatEvent) userID() string {
	for _, id := range append([]string{e.AppUserID, e.OriginalAppUserID}, e.Aliases...) {
		if id != "" && !strings.HasPrefix(id, revenueCatAnonymousPrefix) {
			return id
		}
	}
	return ""
}

func (e revenueCatEvent) subscriptionID() string {
	if e.OriginalTransactionID != "" {
		return e.OriginalTransactionID
	}
	return e.ProductID
}

var revenueCatActions = map[string]entitlement.Action{
	"INITIAL_PURCHASE":            entitlement.ActionGrant,
	"RENEWAL":                     entitlement.ActionGrant,
	"UNCANCELLATION":              entitlement.ActionGrant,
	"PRODUCT_CHANGE":              entitlement.ActionGrant,
	"SUBSCRIPTION_EXTENDED":       entitlement.ActionGrant,
	"NON_RENEWING_PURCHASE":       entitlement.ActionGrant,
	"TEMPORARY_ENTITLEMENT_GRANT": entitlement.ActionGrant,
	"CANCELLATION":                entitlement.ActionRevoke,
	"EXPIRATION":                  entitlement.ActionRevoke,
}

// RevenueCatOption configures a RevenueCatNormalizer.
type RevenueCatOption func(*RevenueCatNormalizer)

// WithEntitlementID restricts the normalizer to events that carry the given
// RevenueCat entitlement identifier.
func WithEntitlementID(id string) RevenueCatOption {
	return func(n *RevenueCatNormalizer) {
		n.entitlementID = id
	}
}

// WithSandbox accepts events from the SANDBOX environment. They are ignored by default.
func WithSandbox(allow bool) RevenueCatOption {
	return func(n *RevenueCatNormalizer) {
		n.allowSandbox = allow
	}
}

// RevenueCatNormalizer maps RevenueCat webhooks onto relay commands.
type RevenueCatNormalizer struct {
	entitlementID string
	allowSandbox  bool
}

func NewRevenueCatNormalizer(opts ...RevenueCatOption) *RevenueCatNormalizer {
	n := &RevenueCatNormalizer{}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *RevenueCatNormalizer) Provider() entitlement.Provider { return entitlement.ProviderRelay }
func (n *RevenueCatNormalizer) Vendor() Vendor                 { return VendorRevenueCat }

func (n *RevenueCatNormalizer) Normalize(_ context.Context, payload []byte) (Result, error) {
	var body revenueCatPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return Result{}, errors.Join(ErrMalformedPayload, err)
	}
	ev := body.Event
	if ev == nil || ev.ID == "" || ev.Type == "" {
		return Result{}, errors.Join(ErrMalformedPayload, errors.New("event id and type are required"))
	}

	action, known := revenueCatActions[ev.Type]
	switch {
	case ev.Type == "TRANSFER":
		return unresolved(entitlement.ProviderRelay, VendorRevenueCat, ev.ID, ev.Type,
			"purchases transferred between app users", payload), nil
	case !known:
		return n.ignore(ev, "event type does not change entitlement"), nil
	case strings.EqualFold(ev.Environment, "SANDBOX") && !n.allowSandbox:
		return n.ignore(ev, "sandbox event"), nil
	case n.entitlementID != "" && !slices.Contains(ev.EntitlementIDs, n.entitlementID):
		return n.ignore(ev, "event does not carry entitlement "+n.entitlementID), nil
	}
	if ev.EventTimestampMs <= 0 {
		return Result{}, errors.Join(ErrMalformedPayload, errors.New("event_timestamp_ms is required"))
	}

	userID := ev.userID()
	if userID == "" {
		return unresolved(entitlement.ProviderRelay, VendorRevenueCat, ev.ID, ev.Type, ErrUnresolvableUser.Error(), payload), nil
	}

	cmd := entitlement.Command{
		UserID:    userID,
		EventID:   ev.ID,
		EventType: ev.Type,
		Timestamp: time.UnixMilli(ev.EventTimestampMs).UTC(),
		Provider:  entitlement.ProviderRelay,
		Action:    action,
	}
	if action == entitlement.ActionGrant {
		if ev.ExpirationAtMs == nil || *ev.ExpirationAtMs <= 0 {
			return unresolved(entitlement.ProviderRelay, VendorRevenueCat, ev.ID, ev.Type, ErrMissingExpiration.Error(), payload), nil
		}
		subID := ev.subscriptionID()
		if subID == "" {
			return unresolved(entitlement.ProviderRelay, VendorRevenueCat, ev.ID, ev.Type, ErrMissingSubscription.Error(), payload), nil
		}
		expires := time.UnixMilli(*ev.ExpirationAtMs).UTC()
		cmd.SubscriptionID = subID
		cmd.ExpiresAt = &expires
	}
	return Result{Command: cmd}, nil
}

func (n *RevenueCatNormalizer) ignore(ev *revenueCatEvent, reason string) Result {
	return ignore(entitlement.ProviderRelay, ev.ID, ev.Type, reason)
}
