package entitlement

import "errors"

var (
	ErrRecordNotFound = errors.New("entitlement record not found")

	// ErrConflict is returned by Store.Save when the stored version moved since the record was read.
	ErrConflict = errors.New("entitlement record was modified concurrently")

	// ErrRetriesExhausted wraps the last conflict once the engine gives up.
	// Webhook callers must NACK so the provider redelivers.
	ErrRetriesExhausted = errors.New("entitlement update retries exhausted")

	ErrInvalidCommand  = errors.New("invalid entitlement command")
	ErrMissingUserID   = errors.New("user id is required")
	ErrInvalidTier     = errors.New("invalid entitlement tier")
	ErrMissingActor    = errors.New("override actor is required")
	ErrStoreNotDefined = errors.New("entitlement store is required")
)
