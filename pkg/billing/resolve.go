package billing

import (
	"context"
	"errors"
	"fmt"
)

// resolveUser returns the first non-empty candidate, falling back to the
// customer index. ErrUnresolvableUser means the event must be parked as an
// anomaly; any other error is an index failure and should be retried.
func resolveUser(ctx context.Context, index CustomerIndex, vendor Vendor, customerID string, candidates ...string) (string, error) {
	for _, c := range candidates {
		if c != "" {
			return c, nil
		}
	}
	if customerID == "" || index == nil {
		return "", ErrUnresolvableUser
	}
	userID, err := index.Lookup(ctx, vendor, customerID)
	if errors.Is(err, ErrCustomerNotFound) {
		return "", ErrUnresolvableUser
	}
	if err != nil {
		return "", errors.Join(ErrCustomerIndex, fmt.Errorf("resolve %s customer %s: %w", vendor, customerID, err))
	}
	return userID, nil
}
