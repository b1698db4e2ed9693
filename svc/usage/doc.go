// Package usage serves the feature gate over HTTP for quota-limited
// features: consume one use, peek at the current decision, or list usage
// across all features. The caller id comes from the X-User-ID header set
// by the upstream authentication layer.
package usage
