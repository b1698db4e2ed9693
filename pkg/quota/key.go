package quota

import (
	"fmt"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// Key identifies one usage counter.
type Key struct {
	UserID  string
	Feature string
	Day     string // YYYY-MM-DD in the reference timezone
}

// NewKey builds the key for the calendar day containing now in loc.
func NewKey(userID, feature string, now time.Time, loc *time.Location) Key {
	return Key{UserID: userID, Feature: feature, Day: DayKey(now, loc)}
}

// DayKey formats the calendar day of t in loc. A nil loc means UTC.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dayLayout)
}

// Validate rejects empty parts, malformed days and features containing the separator.
func (k Key) Validate() error {
	if k.UserID == "" || k.Feature == "" || k.Day == "" {
		return ErrInvalidKey
	}
	if strings.Contains(k.Feature, keySeparator) {
		return fmt.Errorf("%w: feature %q contains %q", ErrInvalidKey, k.Feature, keySeparator)
	}
	if _, err := k.date(); err != nil {
		return err
	}
	return nil
}

const keySeparator = ":"

// String joins the parts with ":". Features and days never contain the
// separator, so the user id is whatever precedes the last two of them.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.UserID, k.Feature, k.Day)
}

// date returns the day as midnight UTC for DATE columns.
func (k Key) date() (time.Time, error) {
	d, err := time.Parse(dayLayout, k.Day)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return d, nil
}
