package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/dmitrymomot/paygate/pkg/entitlement"
)

const paddleSignatureHeader = "Paddle-Signature"

// PaddleVerifier checks the Paddle-Signature header with the SDK verifier.
type PaddleVerifier struct {
	verifier *paddle.WebhookVerifier
}

func NewPaddleVerifier(secret string) (*PaddleVerifier, error) {
	if secret == "" {
		return nil, errors.Join(ErrMissingWebhookSecret, errors.New("paddle"))
	}
	return &PaddleVerifier{verifier: paddle.NewWebhookVerifier(secret)}, nil
}

func (v *PaddleVerifier) Verify(r *http.Request, payload []byte) error {
	sig := r.Header.Get(paddleSignatureHeader)
	if sig == "" {
		return ErrMissingSignature
	}

	// The SDK reads the body itself, so hand it a request over the buffered payload.
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return errors.Join(ErrInvalidSignature, err)
	}
	req.Header.Set(paddleSignatureHeader, sig)

	valid, err := v.verifier.Verify(req)
	if err != nil {
		return errors.Join(ErrInvalidSignature, err)
	}
	if !valid {
		return ErrInvalidSignature
	}
	return nil
}

type paddleEvent struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type paddleEntity struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	CustomerID string         `json:"customer_id"`
	CustomData map[string]any `json:"custom_data"`
}

func (e paddleEntity) userID() string {
	if v, ok := e.CustomData["user_id"].(string); ok {
		return v
	}
	return ""
}

// PaddleNormalizer maps Paddle Billing notifications onto processor commands.
type PaddleNormalizer struct {
	customers CustomerIndex
}

func NewPaddleNormalizer(customers CustomerIndex) *PaddleNormalizer {
	return &PaddleNormalizer{customers: customers}
}

func (n *PaddleNormalizer) Provider() entitlement.Provider { return entitlement.ProviderProcessor }
func (n *PaddleNormalizer) Vendor() Vendor                 { return VendorPaddle }

func (n *PaddleNormalizer) Normalize(ctx context.Context, payload []byte) (Result, error) {
	var event paddleEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return Result{}, errors.Join(ErrMalformedPayload, err)
	}
	if event.EventID == "" || event.EventType == "" || event.OccurredAt.IsZero() {
		return Result{}, errors.Join(ErrMalformedPayload, errors.New("event_id, event_type and occurred_at are required"))
	}

	var entity paddleEntity
	if err := json.Unmarshal(event.Data, &entity); err != nil {
		return Result{}, errors.Join(ErrMalformedPayload, err)
	}

	switch {
	case strings.HasPrefix(event.EventType, "subscription."):
		return n.subscription(ctx, event, entity, payload)
	case strings.HasPrefix(event.EventType, "transaction."):
		res := n.ignore(event, "transactions do not change entitlement")
		if event.EventType == "transaction.completed" && entity.CustomerID != "" && entity.userID() != "" {
			res.Link = &CustomerLink{Vendor: VendorPaddle, CustomerID: entity.CustomerID, UserID: entity.userID()}
		}
		return res, nil
	default:
		return n.ignore(event, "event type not relevant to entitlements"), nil
	}
}

func (n *PaddleNormalizer) subscription(ctx context.Context, event paddleEvent, sub paddleEntity, payload []byte) (Result, error) {
	if sub.ID == "" {
		return Result{}, errors.Join(ErrMalformedPayload, ErrMissingSubscription)
	}

	userID, err := resolveUser(ctx, n.customers, VendorPaddle, sub.CustomerID, sub.userID())
	if errors.Is(err, ErrCustomerIndex) {
		return Result{}, err
	}
	if err != nil {
		return unresolved(entitlement.ProviderProcessor, VendorPaddle, event.EventID, event.EventType, err.Error(), payload), nil
	}

	cmd := entitlement.Command{
		UserID:    userID,
		EventID:   event.EventID,
		EventType: event.EventType,
		Timestamp: event.OccurredAt.UTC(),
		Provider:  entitlement.ProviderProcessor,
		Action:    entitlement.ActionRevoke,
		Reason:    "subscription status " + sub.Status,
	}
	if sub.Status == "active" || sub.Status == "trialing" {
		cmd.Action = entitlement.ActionGrant
		cmd.SubscriptionID = sub.ID
	}

	res := Result{Command: cmd}
	if sub.CustomerID != "" && sub.userID() != "" {
		res.Link = &CustomerLink{Vendor: VendorPaddle, CustomerID: sub.CustomerID, UserID: userID}
	}
	return res, nil
}

func (n *PaddleNormalizer) ignore(event paddleEvent, reason string) Result {
	return ignore(entitlement.ProviderProcessor, event.EventID, event.EventType, reason)
}
