// Package billing turns payment provider webhooks into entitlement commands.
//
// Each webhook endpoint is served by a Source: a Verifier that authenticates
// the delivery and a Normalizer that maps the provider payload onto an
// entitlement.Command with action grant, revoke or ignore.
//
// Processor-style providers (Stripe or Paddle, selected with PROCESSOR_KIND)
// report subscription objects; active and trialing subscriptions grant,
// anything else revokes. The relay provider (RevenueCat) sends its own event
// vocabulary with an expiration on every grant.
//
// Events whose user cannot be resolved are never dropped silently. They come
// back as an ignore command with an Anomaly attached, which the caller hands
// to an AnomalyRecorder (log, billing_anomalies table, e-mail).
//
// Checkout completions and events carrying user metadata produce a
// CustomerLink so later events that only name the provider customer can be
// resolved through a CustomerIndex.
package billing
