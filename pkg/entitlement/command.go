package entitlement

import (
	"errors"
	"fmt"
	"time"
)

// Command is a provider event reduced to an entitlement verb.
// Normalizers in pkg/billing produce commands; the Engine applies them.
type Command struct {
	UserID         string
	EventID        string
	EventType      string // provider-native type, kept for logs and anomalies
	Timestamp      time.Time
	Provider       Provider
	Action         Action
	SubscriptionID string
	ExpiresAt      *time.Time
	// Reason explains an ActionIgnore command.
	Reason string
}

// Validate checks that the command can be applied.
// Ignore commands only need enough identity to be logged.
func (c Command) Validate() error {
	if !c.Provider.Webhook() {
		return errors.Join(ErrInvalidCommand, fmt.Errorf("provider %q cannot emit commands", c.Provider))
	}
	if c.EventID == "" {
		return errors.Join(ErrInvalidCommand, errors.New("event id is required"))
	}
	switch c.Action {
	case ActionIgnore:
		return nil
	case ActionGrant, ActionRevoke:
	default:
		return errors.Join(ErrInvalidCommand, fmt.Errorf("unknown action %q", c.Action))
	}
	if c.UserID == "" {
		return errors.Join(ErrInvalidCommand, ErrMissingUserID)
	}
	if c.Timestamp.IsZero() {
		return errors.Join(ErrInvalidCommand, errors.New("event timestamp is required"))
	}
	if c.Action == ActionGrant {
		if c.SubscriptionID == "" {
			return errors.Join(ErrInvalidCommand, errors.New("grant requires a subscription id"))
		}
		if c.Provider == ProviderRelay && c.ExpiresAt == nil {
			return errors.Join(ErrInvalidCommand, errors.New("relay grant requires an expiry"))
		}
	}
	return nil
}
