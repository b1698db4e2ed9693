// Package gate is the synchronous decision point in front of every
// quota-limited feature.
//
// Gate.CheckAndConsume reads the caller's entitlement: premium users are
// allowed with unlimited remaining and never reach the ledger. Free users go
// through one atomic quota.Ledger.Consume against the feature's daily limit.
// Any lookup or ledger failure denies access, so an outage never hands out
// free usage.
//
// Middleware wraps an http.Handler with the same check and answers denials
// with 402 Payment Required, the remaining quota headers and an upgrade link.
package gate
