// Package webhooks serves the payment provider webhook endpoints.
//
// Each delivery is read (bounded by a body limit), verified by the source's
// billing.Verifier, normalized into an entitlement command and applied by
// the reconciliation engine. Responses follow the provider retry contract:
//
//   - 200 once the outcome is durable, including ignored, duplicate and stale events
//   - 400 for invalid signatures and malformed payloads, which a retry cannot fix
//   - 413 for oversized bodies
//   - 500 when persistence fails, so the provider redelivers
package webhooks
