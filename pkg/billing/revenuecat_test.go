package billing_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/pkg/billing"
	"github.com/dmitrymomot/paygate/pkg/entitlement"
)

func revenueCatPayload(t *testing.T, event map[string]any) []byte {
	t.Helper()

	base := map[string]any{
		"id":                      "rc_evt_1",
		"type":                    "RENEWAL",
		"app_user_id":             "user-1",
		"original_app_user_id":    "user-1",
		"event_timestamp_ms":      int64(1_714_557_600_000),
		"expiration_at_ms":        int64(1_717_236_000_000),
		"product_id":              "premium_monthly",
		"entitlement_ids":         []string{"premium"},
		"environment":             "PRODUCTION",
		"original_transaction_id": "1000000012345",
	}
	for k, v := range event {
		if v == nil {
			delete(base, k)
			continue
		}
		base[k] = v
	}
	b, err := json.Marshal(map[string]any{"api_version": "1.0", "event": base})
	require.NoError(t, err)
	return b
}

func TestRevenueCatVerifier(t *testing.T) {
	t.Parallel()

	v, err := billing.NewRevenueCatVerifier("rc-secret")
	require.NoError(t, err)

	for header, want := range map[string]error{
		"rc-secret":        nil,
		"Bearer rc-secret": nil,
		"Bearer wrong":     billing.ErrInvalidSignature,
		"rc-secret-longer": billing.ErrInvalidSignature,
		"":                 billing.ErrMissingSignature,
	} {
		r := httptest.NewRequest(http.MethodPost, "/webhooks/relay", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		err := v.Verify(r, nil)
		if want == nil {
			assert.NoError(t, err, header)
		} else {
			assert.ErrorIs(t, err, want, header)
		}
	}

	_, err = billing.NewRevenueCatVerifier("")
	assert.ErrorIs(t, err, billing.ErrMissingWebhookSecret)
}

func TestRevenueCatNormalizer_Mapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ  string
		want entitlement.Action
	}{
		{"INITIAL_PURCHASE", entitlement.ActionGrant},
		{"RENEWAL", entitlement.ActionGrant},
		{"UNCANCELLATION", entitlement.ActionGrant},
		{"PRODUCT_CHANGE", entitlement.ActionGrant},
		{"SUBSCRIPTION_EXTENDED", entitlement.ActionGrant},
		{"NON_RENEWING_PURCHASE", entitlement.ActionGrant},
		{"TEMPORARY_ENTITLEMENT_GRANT", entitlement.ActionGrant},
		{"CANCELLATION", entitlement.ActionRevoke},
		{"EXPIRATION", entitlement.ActionRevoke},
		{"BILLING_ISSUE", entitlement.ActionIgnore},
		{"SUBSCRIPTION_PAUSED", entitlement.ActionIgnore},
		{"TEST", entitlement.ActionIgnore},
		{"SOMETHING_NEW", entitlement.ActionIgnore},
	}

	n := billing.NewRevenueCatNormalizer()
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			t.Parallel()

			res, err := n.Normalize(context.Background(), revenueCatPayload(t, map[string]any{"type": tt.typ}))
			require.NoError(t, err)
			require.NoError(t, res.Command.Validate())

			assert.Equal(t, tt.want, res.Command.Action)
			assert.Equal(t, entitlement.ProviderRelay, res.Command.Provider)
			assert.Nil(t, res.Anomaly)

			switch tt.want {
			case entitlement.ActionGrant:
				assert.Equal(t, "user-1", res.Command.UserID)
				assert.Equal(t, "1000000012345", res.Command.SubscriptionID)
				require.NotNil(t, res.Command.ExpiresAt)
				assert.Equal(t, time.UnixMilli(1_717_236_000_000).UTC(), *res.Command.ExpiresAt)
				assert.Equal(t, time.UnixMilli(1_714_557_600_000).UTC(), res.Command.Timestamp)
			case entitlement.ActionRevoke:
				assert.Equal(t, "user-1", res.Command.UserID)
				assert.Nil(t, res.Command.ExpiresAt)
			}
		})
	}
}

func TestRevenueCatNormalizer_UserResolution(t *testing.T) {
	t.Parallel()

	n := billing.NewRevenueCatNormalizer()

	t.Run("anonymous falls back to original id", func(t *testing.T) {
		t.Parallel()

		res, err := n.Normalize(context.Background(), revenueCatPayload(t, map[string]any{
			"app_user_id":          "$RCAnonymousID:abc",
			"original_app_user_id": "user-2",
		}))
		require.NoError(t, err)
		assert.Equal(t, "user-2", res.Command.UserID)
	})

	t.Run("anonymous falls back to aliases", func(t *testing.T) {
		t.Parallel()

		res, err := n.Normalize(context.Background(), revenueCatPayload(t, map[string]any{
			"app_user_id":          "$RCAnonymousID:abc",
			"original_app_user_id": "$RCAnonymousID:abc",
			"aliases":              []string{"$RCAnonymousID:abc", "user-3"},
		}))
		require.NoError(t, err)
		assert.Equal(t, "user-3", res.Command.UserID)
	})

	t.Run("only anonymous ids is an anomaly", func(t *testing.T) {
		t.Parallel()

		res, err := n.Normalize(context.Background(), revenueCatPayload(t, map[string]any{
			"app_user_id":          "$RCAnonymousID:abc",
			"original_app_user_id": "$RCAnonymousID:abc",
		}))
		require.NoError(t, err)
		assert.Equal(t, entitlement.ActionIgnore, res.Command.Action)
		require.NotNil(t, res.Anomaly)
		assert.Equal(t, billing.VendorRevenueCat, res.Anomaly.Vendor)
		assert.Equal(t, entitlement.ProviderRelay, res.Anomaly.Provider)
	})
}

func TestRevenueCatNormalizer_Anomalies(t *testing.T) {
	t.Parallel()

	n := billing.NewRevenueCatNormalizer()

	t.Run("grant without expiration", func(t *testing.T) {
		t.Parallel()

		res, err := n.Normalize(context.Background(), revenueCatPayload(t, map[string]any{"expiration_at_ms": nil}))
		require.NoError(t, err)
		assert.Equal(t, entitlement.ActionIgnore, res.Command.Action)
		require.NotNil(t, res.Anomaly)
		assert.Equal(t, billing.ErrMissingExpiration.Error(), res.Anomaly.Reason)
	})

	t.Run("transfer", func(t *testing.T) {
		t.Parallel()

		res, err := n.Normalize(context.Background(), revenueCatPayload(t, map[string]any{"type": "TRANSFER"}))
		require.NoError(t, err)
		assert.Equal(t, entitlement.ActionIgnore, res.Command.Action)
		assert.NotNil(t, res.Anomaly)

		again, err := n.Normalize(context.Background(), revenueCatPayload(t, map[string]any{"type": "TRANSFER"}))
		require.NoError(t, err)
		require.NotNil(t, again.Anomaly)
		assert.Equal(t, res.Anomaly.ID, again.Anomaly.ID, "redelivered event keeps its anomaly id")
	})

	t.Run("product id used when no transaction id", func(t *testing.T) {
		t.Parallel()

		res, err := n.Normalize(context.Background(), revenueCatPayload(t, map[string]any{"original_transaction_id": nil}))
		require.NoError(t, err)
		assert.Equal(t, "premium_monthly", res.Command.SubscriptionID)
	})
}

func TestRevenueCatNormalizer_Filters(t *testing.T) {
	t.Parallel()

	t.Run("sandbox ignored by default", func(t *testing.T) {
		t.Parallel()

		res, err := billing.NewRevenueCatNormalizer().Normalize(context.Background(),
			revenueCatPayload(t, map[string]any{"environment": "SANDBOX"}))
		require.NoError(t, err)
		assert.Equal(t, entitlement.ActionIgnore, res.Command.Action)
	})

	t.Run("sandbox allowed", func(t *testing.T) {
		t.Parallel()

		res, err := billing.NewRevenueCatNormalizer(billing.WithSandbox(true)).Normalize(context.Background(),
			revenueCatPayload(t, map[string]any{"environment": "SANDBOX"}))
		require.NoError(t, err)
		assert.Equal(t, entitlement.ActionGrant, res.Command.Action)
	})

	t.Run("entitlement filter", func(t *testing.T) {
		t.Parallel()

		n := billing.NewRevenueCatNormalizer(billing.WithEntitlementID("pro"))
		res, err := n.Normalize(context.Background(), revenueCatPayload(t, nil))
		require.NoError(t, err)
		assert.Equal(t, entitlement.ActionIgnore, res.Command.Action)

		res, err = n.Normalize(context.Background(), revenueCatPayload(t, map[string]any{"entitlement_ids": []string{"pro"}}))
		require.NoError(t, err)
		assert.Equal(t, entitlement.ActionGrant, res.Command.Action)
	})
}

func TestRevenueCatNormalizer_Malformed(t *testing.T) {
	t.Parallel()

	n := billing.NewRevenueCatNormalizer()
	for name, payload := range map[string][]byte{
		"not json":     []byte("]"),
		"no event":     []byte(`{"api_version":"1.0"}`),
		"no id":        revenueCatPayload(t, map[string]any{"id": ""}),
		"no timestamp": revenueCatPayload(t, map[string]any{"event_timestamp_ms": nil}),
	} {
		_, err := n.Normalize(context.Background(), payload)
		assert.ErrorIs(t, err, billing.ErrMalformedPayload, name)
	}
}
