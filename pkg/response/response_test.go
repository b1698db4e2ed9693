package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/pkg/response"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	response.JSON(rec, http.StatusCreated, map[string]int{"n": 1}, map[string]any{"page": 1})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	env := decode(t, rec)
	assert.Equal(t, map[string]any{"n": float64(1)}, env.Data)
	assert.Equal(t, float64(1), env.Meta["page"])
	assert.Nil(t, env.Error)
}

func TestError(t *testing.T) {
	t.Parallel()

	t.Run("http error sets status and code", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		response.Error(rec, fmt.Errorf("wrapped: %w", response.ErrPaymentRequired), "limit reached", nil)

		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		env := decode(t, rec)
		require.NotNil(t, env.Error)
		assert.Equal(t, "quota_exceeded", env.Error.Code)
		assert.Equal(t, "limit reached", env.Error.Message)
	})

	t.Run("plain error is opaque", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		response.Error(rec, errors.New("pq: password authentication failed"), "", nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		env := decode(t, rec)
		assert.Equal(t, "internal_server_error", env.Error.Code)
		assert.Equal(t, "Internal Server Error", env.Error.Message)
	})

	assert.Equal(t, "not_found", response.ErrNotFound.Error())
}
