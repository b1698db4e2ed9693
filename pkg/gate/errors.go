package gate

import "errors"

var (
	ErrMissingUserID           = errors.New("user id is required")
	ErrUnknownFeature          = errors.New("unknown feature")
	ErrEntitlementUnavailable  = errors.New("entitlement lookup failed")
	ErrLedgerUnavailable       = errors.New("quota ledger failed")
	ErrEntitlementsNotProvided = errors.New("entitlement reader is required")
	ErrLedgerNotProvided       = errors.New("quota ledger is required")
)
