package gate_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/pkg/gate"
	"github.com/dmitrymomot/paygate/pkg/quota"
	"github.com/dmitrymomot/paygate/pkg/response"
)

func serve(h http.Handler, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/solve", nil)
	if userID != "" {
		req.Header.Set(gate.UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("allows until limit then returns 402 with upgrade link", func(t *testing.T) {
		t.Parallel()
		reader := &mockReader{}
		reader.On("Get", mock.Anything, "u1").Return(freeRecord("u1"), nil)
		g := newGate(t, reader, quota.NewMemoryLedger(quota.WithCleanupInterval(0)))
		h := gate.Middleware(g, "summarizer", gate.WithUpgradeURL("https://example.com/pricing"))(ok)

		for i := range 3 {
			rec := serve(h, "u1")
			require.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, "3", rec.Header().Get("X-Quota-Limit"))
			assert.Equal(t, []string{"2", "1", "0"}[i], rec.Header().Get("X-Quota-Remaining"))
		}

		rec := serve(h, "u1")
		require.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("X-Quota-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-Quota-Reset"))

		var env response.Envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		require.NotNil(t, env.Error)
		assert.Equal(t, "quota_exceeded", env.Error.Code)
		assert.Equal(t, "https://example.com/pricing", env.Meta["upgrade_url"])
		assert.Equal(t, "summarizer", env.Meta["feature"])
	})

	t.Run("premium users see unlimited headers", func(t *testing.T) {
		t.Parallel()
		reader := &mockReader{}
		reader.On("Get", mock.Anything, "u1").Return(premiumRecord("u1", nil), nil)
		g := newGate(t, reader, untouchableLedger{t: t})
		h := gate.Middleware(g, "solver")(ok)

		rec := serve(h, "u1")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "unlimited", rec.Header().Get("X-Quota-Remaining"))
	})

	t.Run("missing user id", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, &mockReader{}, untouchableLedger{t: t})
		rec := serve(gate.Middleware(g, "solver")(ok), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("custom user id func", func(t *testing.T) {
		t.Parallel()
		reader := &mockReader{}
		reader.On("Get", mock.Anything, "from-ctx").Return(freeRecord("from-ctx"), nil)
		g := newGate(t, reader, quota.NewMemoryLedger(quota.WithCleanupInterval(0)))
		h := gate.Middleware(g, "solver", gate.WithUserIDFunc(func(*http.Request) string { return "from-ctx" }))(ok)

		assert.Equal(t, http.StatusNoContent, serve(h, "").Code)
		reader.AssertExpectations(t)
	})

	t.Run("store failure fails closed with 503", func(t *testing.T) {
		t.Parallel()
		reader := &mockReader{}
		reader.On("Get", mock.Anything, "u1").Return(nil, errors.New("down"))
		g := newGate(t, reader, untouchableLedger{t: t})

		rec := serve(gate.Middleware(g, "solver")(ok), "u1")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("unknown feature is 404", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, &mockReader{}, untouchableLedger{t: t})
		rec := serve(gate.Middleware(g, "teleport")(ok), "u1")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
