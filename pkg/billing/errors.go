package billing

import "errors"

var (
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrMissingSignature     = errors.New("missing webhook signature")
	ErrMalformedPayload     = errors.New("malformed webhook payload")
	ErrUnresolvableUser     = errors.New("webhook event has no resolvable user id")
	ErrCustomerNotFound     = errors.New("billing customer not linked to a user")
	ErrMissingWebhookSecret = errors.New("webhook secret is not configured")
	ErrUnknownProcessor     = errors.New("unknown processor kind")
	ErrMissingSubscription  = errors.New("webhook event has no subscription id")
	ErrMissingExpiration    = errors.New("relay grant has no expiration")
	ErrCustomerIndex        = errors.New("customer index unavailable")
)
