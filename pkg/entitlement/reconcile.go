package entitlement

import "time"

// reconcile applies cmd to rec in place and reports the outcome.
// It is a pure function of (rec, cmd); persistence and retries live in the Engine.
func reconcile(rec *Record, cmd Command, now time.Time) Outcome {
	if cmd.Action == ActionIgnore {
		return OutcomeIgnored
	}

	if rec.Watermarks == nil {
		rec.Watermarks = make(map[Provider]Watermark)
	}
	if wm, seen := rec.Watermarks[cmd.Provider]; seen {
		switch wm.Compare(cmd.Timestamp, cmd.EventID) {
		case 0:
			return OutcomeDuplicate
		case 1:
			return OutcomeStale
		}
	}
	rec.Watermarks[cmd.Provider] = Watermark{EventID: cmd.EventID, Timestamp: cmd.Timestamp}
	rec.UpdatedAt = now

	switch cmd.Action {
	case ActionGrant:
		// A grant may take over from another provider only when it is at least
		// as recent as the event that established the current entitlement.
		// An operator override is a floor for every provider, including a free one.
		if cmd.Timestamp.Before(rec.LastEventTimestamp) &&
			(rec.overridden() || (rec.ActiveProvider != ProviderNone && rec.ActiveProvider != cmd.Provider)) {
			return OutcomeSuperseded
		}
		rec.grant(cmd.Provider, cmd.SubscriptionID, cmd.ExpiresAt)
		rec.markEvent(cmd.EventID, cmd.Timestamp)
		return OutcomeApplied

	case ActionRevoke:
		if rec.ActiveProvider != cmd.Provider {
			return OutcomeNotAuthoritative
		}
		rec.revoke()
		rec.markEvent(cmd.EventID, cmd.Timestamp)
		return OutcomeApplied
	}

	return OutcomeIgnored
}
