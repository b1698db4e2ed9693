package billing

import (
	"context"
	"net/http"

	"github.com/dmitrymomot/paygate/pkg/entitlement"
)

// Vendor names the concrete billing platform behind a provider slot.
type Vendor string

const (
	VendorStripe     Vendor = "stripe"
	VendorPaddle     Vendor = "paddle"
	VendorRevenueCat Vendor = "revenuecat"
)

// Verifier authenticates a webhook delivery. payload is the already-read request body.
type Verifier interface {
	Verify(r *http.Request, payload []byte) error
}

// Normalizer translates a verified payload into at most one entitlement command.
// Events that must not change entitlements come back as ActionIgnore.
// ErrMalformedPayload is returned when the body cannot be decoded at all.
type Normalizer interface {
	Provider() entitlement.Provider
	Vendor() Vendor
	Normalize(ctx context.Context, payload []byte) (Result, error)
}

// Result is the output of a Normalizer.
type Result struct {
	Command entitlement.Command
	// Anomaly is set when the event needs manual follow-up, e.g. an unresolvable user.
	Anomaly *Anomaly
	// Link is set when the event ties a billing customer to a user.
	Link *CustomerLink
}

// CustomerLink associates a vendor customer id with an internal user id.
type CustomerLink struct {
	Vendor     Vendor
	CustomerID string
	UserID     string
}

// ignore builds an ActionIgnore result.
func ignore(provider entitlement.Provider, eventID, eventType, reason string) Result {
	return Result{Command: entitlement.Command{
		EventID:   eventID,
		EventType: eventType,
		Provider:  provider,
		Action:    entitlement.ActionIgnore,
		Reason:    reason,
	}}
}

// unresolved builds an ignore result that carries an anomaly for manual follow-up.
func unresolved(provider entitlement.Provider, vendor Vendor, eventID, eventType, reason string, payload []byte) Result {
	res := ignore(provider, eventID, eventType, reason)
	res.Anomaly = newAnomaly(provider, vendor, eventID, eventType, reason, payload)
	return res
}
