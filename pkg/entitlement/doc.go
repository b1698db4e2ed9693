// Package entitlement owns the authoritative free/premium state of every user
// and the rules that reconcile billing events into it.
//
// # Records
//
// A Record stores which provider currently grants premium access
// (ActiveProvider), the provider's subscription id and expiry, and one
// Watermark per provider holding the newest (timestamp, event id) pair that
// was applied. Tier is always derived from ActiveProvider; a record with
// ProviderNone is free, anything else is premium.
//
// # Reconciliation
//
// Engine.Apply takes a Command produced by the billing normalizers:
//
//   - Events at or below the provider's watermark are duplicates or stale and
//     change nothing, so webhook redeliveries and out-of-order arrival are safe.
//   - A grant sets the active provider. It can take over from another provider
//     only when it is at least as new as the event behind the current grant.
//   - A revoke takes effect only when it comes from the active provider, so a
//     cancellation on one platform never clears access bought on another.
//
// Writes use compare-and-set on Record.Version. Conflicts are retried with
// backoff; ErrRetriesExhausted tells the webhook layer to NACK so the
// provider redelivers.
//
// Engine.Override lets an operator force a tier. Premium overrides are held
// by ProviderManual and are not affected by webhook revokes.
//
// # Stores
//
// MemoryStore serves tests and single-process deployments, PostgresStore
// persists to the entitlements table and CachedStore adds an LRU in front of
// either one.
package entitlement
