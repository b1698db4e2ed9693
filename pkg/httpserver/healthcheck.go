package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/paygate/pkg/logger"
	"github.com/dmitrymomot/paygate/pkg/response"
)

// Check is a named dependency probe, e.g. a database ping.
type Check struct {
	Name string
	Fn   func(context.Context) error
}

const defaultCheckTimeout = 2 * time.Second

// LivenessHandler always answers 200.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "alive"}, nil)
	}
}

// HealthCheckHandler runs every check with the request context bounded by
// timeout (2s when zero). It answers 200 when all pass and 503 listing the
// failing checks otherwise.
func HealthCheckHandler(log *slog.Logger, timeout time.Duration, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		results := make(map[string]string, len(checks))
		ready := true
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed",
					logger.Component(c.Name),
					logger.Error(err),
				)
				results[c.Name] = "failing"
				ready = false
				continue
			}
			results[c.Name] = "ok"
		}

		if !ready {
			response.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "checks": results}, nil)
			return
		}
		response.JSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": results}, nil)
	}
}
