package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/pkg/httpserver"
)

type healthBody struct {
	Data struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	} `json:"data"`
}

func serve(t *testing.T, h http.Handler) (int, healthBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var body healthBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	code, body := serve(t, httpserver.LivenessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alive", body.Data.Status)
}

func TestHealthCheckHandler(t *testing.T) {
	t.Parallel()

	ok := httpserver.Check{Name: "pg", Fn: func(context.Context) error { return nil }}
	failing := httpserver.Check{Name: "redis", Fn: func(context.Context) error { return errors.New("connection refused") }}

	t.Run("all passing", func(t *testing.T) {
		t.Parallel()

		code, body := serve(t, httpserver.HealthCheckHandler(nil, 0, ok))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ready", body.Data.Status)
		assert.Equal(t, map[string]string{"pg": "ok"}, body.Data.Checks)
	})

	t.Run("one failing", func(t *testing.T) {
		t.Parallel()

		code, body := serve(t, httpserver.HealthCheckHandler(nil, 0, ok, failing))
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "not_ready", body.Data.Status)
		assert.Equal(t, map[string]string{"pg": "ok", "redis": "failing"}, body.Data.Checks)
	})

	t.Run("checks are bounded by timeout", func(t *testing.T) {
		t.Parallel()

		slow := httpserver.Check{Name: "slow", Fn: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
				return nil
			}
		}}
		start := time.Now()
		code, _ := serve(t, httpserver.HealthCheckHandler(nil, 20*time.Millisecond, slow))
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
}
