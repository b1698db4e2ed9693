package quota

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Limits maps a feature key to its daily ceiling for free users.
// Premium users are never checked against it.
type Limits map[string]int64

// Limit returns the ceiling for feature and whether the feature is known.
func (l Limits) Limit(feature string) (int64, bool) {
	v, ok := l[feature]
	return v, ok
}

// Features returns the configured feature keys in sorted order.
func (l Limits) Features() []string {
	return slices.Sorted(maps.Keys(l))
}

// Validate rejects empty tables and negative ceilings. A zero ceiling is
// allowed and disables the feature for free users.
func (l Limits) Validate() error {
	if len(l) == 0 {
		return errors.Join(ErrInvalidLimits, errors.New("at least one feature limit is required"))
	}
	for feature, limit := range l {
		if feature == "" {
			return errors.Join(ErrInvalidLimits, errors.New("empty feature key"))
		}
		if strings.Contains(feature, keySeparator) {
			return errors.Join(ErrInvalidLimits, fmt.Errorf("feature %q must not contain %q", feature, keySeparator))
		}
		if limit < 0 {
			return errors.Join(ErrInvalidLimits, fmt.Errorf("feature %q has negative limit %d", feature, limit))
		}
	}
	return nil
}
