package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/paygate/pkg/entitlement"
)

const stripeSignatureHeader = "Stripe-Signature"

// StripeVerifier checks the Stripe-Signature header.
type StripeVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewStripeVerifier(secret string, tolerance time.Duration) (*StripeVerifier, error) {
	if secret == "" {
		return nil, errors.Join(ErrMissingWebhookSecret, errors.New("stripe"))
	}
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &StripeVerifier{secret: secret, tolerance: tolerance}, nil
}

func (v *StripeVerifier) Verify(r *http.Request, payload []byte) error {
	sig := r.Header.Get(stripeSignatureHeader)
	if sig == "" {
		return ErrMissingSignature
	}
	_, err := webhook.ConstructEventWithOptions(payload, sig, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return errors.Join(ErrInvalidSignature, err)
	}
	return nil
}

// StripeNormalizer maps Stripe events onto processor commands.
type StripeNormalizer struct {
	customers CustomerIndex
}

func NewStripeNormalizer(customers CustomerIndex) *StripeNormalizer {
	return &StripeNormalizer{customers: customers}
}

func (n *StripeNormalizer) Provider() entitlement.Provider { return entitlement.ProviderProcessor }
func (n *StripeNormalizer) Vendor() Vendor                 { return VendorStripe }

func (n *StripeNormalizer) Normalize(ctx context.Context, payload []byte) (Result, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Result{}, errors.Join(ErrMalformedPayload, err)
	}
	if event.ID == "" || event.Type == "" || event.Data == nil {
		return Result{}, errors.Join(ErrMalformedPayload, errors.New("event id, type and data are required"))
	}

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionResumed,
		stripe.EventTypeCustomerSubscriptionPaused,
		stripe.EventTypeCustomerSubscriptionDeleted:
		return n.subscription(ctx, event, payload)
	case stripe.EventTypeCheckoutSessionCompleted:
		return n.checkout(event, payload)
	case stripe.EventTypeInvoicePaid:
		return n.invoicePaid(ctx, event, payload)
	case stripe.EventTypeInvoicePaymentFailed:
		return n.ignore(event, "payment failure does not change entitlement until the subscription status does"), nil
	default:
		return n.ignore(event, "event type not relevant to entitlements"), nil
	}
}

func (n *StripeNormalizer) subscription(ctx context.Context, event stripe.Event, payload []byte) (Result, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil || sub.ID == "" {
		return Result{}, errors.Join(ErrMalformedPayload, err)
	}

	var customerID string
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	userID, err := resolveUser(ctx, n.customers, VendorStripe, customerID, sub.Metadata["user_id"])
	if err != nil {
		return n.unresolved(event, payload, err)
	}

	action := entitlement.ActionRevoke
	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionPaused, stripe.EventTypeCustomerSubscriptionDeleted:
	default:
		if sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing {
			action = entitlement.ActionGrant
		}
	}

	res := Result{Command: n.command(event, userID, action, sub.ID)}
	res.Command.Reason = "subscription status " + string(sub.Status)
	if customerID != "" && sub.Metadata["user_id"] != "" {
		res.Link = &CustomerLink{Vendor: VendorStripe, CustomerID: customerID, UserID: userID}
	}
	return res, nil
}

func (n *StripeNormalizer) checkout(event stripe.Event, payload []byte) (Result, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil || session.ID == "" {
		return Result{}, errors.Join(ErrMalformedPayload, err)
	}
	if session.Mode != stripe.CheckoutSessionModeSubscription {
		return n.ignore(event, "checkout is not a subscription"), nil
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		session.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		return n.ignore(event, "checkout payment not settled"), nil
	}

	userID := session.ClientReferenceID
	if userID == "" {
		userID = session.Metadata["user_id"]
	}
	if userID == "" {
		return n.unresolved(event, payload, ErrUnresolvableUser)
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		return n.unresolved(event, payload, ErrMissingSubscription)
	}

	res := Result{Command: n.command(event, userID, entitlement.ActionGrant, session.Subscription.ID)}
	res.Command.Reason = "checkout completed"
	if session.Customer != nil && session.Customer.ID != "" {
		res.Link = &CustomerLink{Vendor: VendorStripe, CustomerID: session.Customer.ID, UserID: userID}
	}
	return res, nil
}

// stripeInvoice decodes the fields of an invoice needed for renewals.
// The subscription moved under parent.subscription_details in newer API
// versions; both locations are accepted.
type stripeInvoice struct {
	ID           string            `json:"id"`
	Customer     stripeID          `json:"customer"`
	Subscription stripeID          `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription stripeID          `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (i stripeInvoice) subscription() (string, map[string]string) {
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil && i.Parent.SubscriptionDetails.Subscription != "" {
		return string(i.Parent.SubscriptionDetails.Subscription), i.Parent.SubscriptionDetails.Metadata
	}
	return string(i.Subscription), i.Metadata
}

func (n *StripeNormalizer) invoicePaid(ctx context.Context, event stripe.Event, payload []byte) (Result, error) {
	var inv stripeInvoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil || inv.ID == "" {
		return Result{}, errors.Join(ErrMalformedPayload, err)
	}
	subID, meta := inv.subscription()
	if subID == "" {
		return n.ignore(event, "invoice is not for a subscription"), nil
	}

	userID, err := resolveUser(ctx, n.customers, VendorStripe, string(inv.Customer), meta["user_id"])
	if err != nil {
		return n.unresolved(event, payload, err)
	}
	res := Result{Command: n.command(event, userID, entitlement.ActionGrant, subID)}
	res.Command.Reason = "invoice paid"
	return res, nil
}

func (n *StripeNormalizer) command(event stripe.Event, userID string, action entitlement.Action, subID string) entitlement.Command {
	cmd := entitlement.Command{
		UserID:    userID,
		EventID:   event.ID,
		EventType: string(event.Type),
		Timestamp: time.Unix(event.Created, 0).UTC(),
		Provider:  entitlement.ProviderProcessor,
		Action:    action,
	}
	if action == entitlement.ActionGrant {
		cmd.SubscriptionID = subID
	}
	return cmd
}

func (n *StripeNormalizer) ignore(event stripe.Event, reason string) Result {
	return ignore(entitlement.ProviderProcessor, event.ID, string(event.Type), reason)
}

// unresolved parks the event as an anomaly. Customer index failures are
// returned as errors so the delivery is retried.
func (n *StripeNormalizer) unresolved(event stripe.Event, payload []byte, err error) (Result, error) {
	if errors.Is(err, ErrCustomerIndex) {
		return Result{}, err
	}
	return unresolved(entitlement.ProviderProcessor, VendorStripe, event.ID, string(event.Type), err.Error(), payload), nil
}

// stripeID accepts either a bare id or an expanded object.
type stripeID string

func (s *stripeID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*s = stripeID(obj.ID)
		return nil
	}
	var id *string
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	if id != nil {
		*s = stripeID(*id)
	}
	return nil
}
