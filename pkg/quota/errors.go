package quota

import "errors"

var (
	ErrInvalidKey       = errors.New("quota key requires user id, feature and day")
	ErrInvalidLimits    = errors.New("invalid feature limits")
	ErrUnexpectedResult = errors.New("unexpected ledger script result")
)
