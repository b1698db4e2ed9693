package gate

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/paygate/pkg/response"
)

// UserIDHeader carries the authenticated caller id set by the upstream auth layer.
const UserIDHeader = "X-User-ID"

// UserIDFunc extracts the caller id from a request.
type UserIDFunc func(r *http.Request) string

// HeaderUserID reads the caller id from UserIDHeader.
func HeaderUserID(r *http.Request) string {
	return r.Header.Get(UserIDHeader)
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	userID     UserIDFunc
	upgradeURL string
}

// WithUserIDFunc overrides how the caller id is read. Defaults to HeaderUserID.
func WithUserIDFunc(fn UserIDFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.userID = fn
		}
	}
}

// WithUpgradeURL sets the link returned to users who hit their limit.
func WithUpgradeURL(url string) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.upgradeURL = url
	}
}

// Middleware consumes one use of feature before calling next.
// Denied requests get 402 with an upgrade link; gate failures get 503.
func Middleware(g *Gate, feature string, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{userID: HeaderUserID}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := cfg.userID(r)
			if userID == "" {
				response.Error(w, response.ErrUnauthorized, "missing user id", nil)
				return
			}

			d, err := g.CheckAndConsume(r.Context(), userID, feature)
			if err != nil {
				WriteFailure(w, err)
				return
			}

			SetHeaders(w, d)
			if !d.Allowed {
				WriteDenied(w, d, cfg.upgradeURL)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetHeaders writes X-Quota-* headers describing d.
func SetHeaders(w http.ResponseWriter, d Decision) {
	h := w.Header()
	if d.Unlimited() {
		h.Set("X-Quota-Limit", "unlimited")
		h.Set("X-Quota-Remaining", "unlimited")
		return
	}
	h.Set("X-Quota-Limit", strconv.FormatInt(d.Limit, 10))
	h.Set("X-Quota-Remaining", strconv.FormatInt(d.Remaining, 10))
	if !d.ResetAt.IsZero() {
		h.Set("X-Quota-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
}

// WriteDenied answers a denied decision with 402 and an upgrade path.
func WriteDenied(w http.ResponseWriter, d Decision, upgradeURL string) {
	if !d.ResetAt.IsZero() {
		if secs := int64(time.Until(d.ResetAt).Seconds()); secs > 0 {
			w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		}
	}
	response.Error(w, response.ErrPaymentRequired, "daily free limit reached", map[string]any{
		"feature":     d.Feature,
		"limit":       d.Limit,
		"remaining":   d.Remaining,
		"reset_at":    d.ResetAt,
		"upgrade_url": upgradeURL,
	})
}

// WriteFailure maps gate errors to responses. Unknown features are 404;
// everything else fails closed with 503.
func WriteFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownFeature):
		response.Error(w, response.ErrNotFound, "unknown feature", nil)
	case errors.Is(err, ErrMissingUserID):
		response.Error(w, response.ErrUnauthorized, "missing user id", nil)
	default:
		response.Error(w, response.ErrServiceUnavailable, "usage check unavailable", nil)
	}
}
