package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/pkg/config"
)

func TestAppConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		config.ResetCache()
		t.Cleanup(config.ResetCache)

		var cfg appConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, map[string]int64{"solver": 5, "summarizer": 3}, cfg.FeatureLimits)
		assert.Equal(t, backendPostgres, cfg.QuotaBackend)
		assert.Equal(t, time.UTC, cfg.location())
	})

	t.Run("custom limits and timezone", func(t *testing.T) {
		config.ResetCache()
		t.Cleanup(config.ResetCache)
		t.Setenv("FEATURE_LIMITS", "solver=10,export=0")
		t.Setenv("QUOTA_TIMEZONE", "Europe/Berlin")
		t.Setenv("QUOTA_BACKEND", "redis")

		var cfg appConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, map[string]int64{"solver": 10, "export": 0}, cfg.FeatureLimits)
		assert.Equal(t, "Europe/Berlin", cfg.location().String())
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		cases := map[string][2]string{
			"negative limit":   {"FEATURE_LIMITS", "solver=-1"},
			"unknown timezone": {"QUOTA_TIMEZONE", "Mars/Olympus"},
			"unknown backend":  {"QUOTA_BACKEND", "mongo"},
			"zero attempts":    {"RECONCILE_MAX_ATTEMPTS", "0"},
		}
		for name, kv := range cases {
			t.Run(name, func(t *testing.T) {
				config.ResetCache()
				t.Cleanup(config.ResetCache)
				t.Setenv(kv[0], kv[1])

				var cfg appConfig
				assert.ErrorIs(t, config.Load(&cfg), config.ErrInvalidConfig)
			})
		}
	})
}
