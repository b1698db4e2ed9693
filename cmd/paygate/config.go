package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/paygate/pkg/quota"
)

const (
	backendPostgres = "postgres"
	backendRedis    = "redis"
	backendMemory   = "memory"
)

// appConfig holds the process-level settings not owned by a package config.
type appConfig struct {
	Env                  string           `env:"ENV" envDefault:"development"`
	ServiceName          string           `env:"SERVICE_NAME" envDefault:"paygate"`
	LogLevel             string           `env:"LOG_LEVEL"`
	FeatureLimits        map[string]int64 `env:"FEATURE_LIMITS" envDefault:"solver=5,summarizer=3" envSeparator:"," envKeyValSeparator:"="`
	QuotaTimezone        string           `env:"QUOTA_TIMEZONE" envDefault:"UTC"`
	QuotaBackend         string           `env:"QUOTA_BACKEND" envDefault:"postgres"`
	EntitlementCacheSize int              `env:"ENTITLEMENT_CACHE_SIZE" envDefault:"0"`
	ReconcileAttempts    int              `env:"RECONCILE_MAX_ATTEMPTS" envDefault:"5"`
	AdminToken           string           `env:"ADMIN_TOKEN"`
	UpgradeURL           string           `env:"UPGRADE_URL"`
	WebhookMaxBodyBytes  int64            `env:"WEBHOOK_MAX_BODY_BYTES" envDefault:"1048576"`
}

func (c appConfig) Validate() error {
	if err := quota.Limits(c.FeatureLimits).Validate(); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.QuotaTimezone); err != nil {
		return fmt.Errorf("QUOTA_TIMEZONE: %w", err)
	}
	switch c.QuotaBackend {
	case backendPostgres, backendRedis, backendMemory:
	default:
		return fmt.Errorf("QUOTA_BACKEND must be postgres, redis or memory, got %q", c.QuotaBackend)
	}
	if c.EntitlementCacheSize < 0 {
		return errors.New("ENTITLEMENT_CACHE_SIZE must not be negative")
	}
	if c.ReconcileAttempts < 1 {
		return errors.New("RECONCILE_MAX_ATTEMPTS must be at least 1")
	}
	if c.WebhookMaxBodyBytes <= 0 {
		return errors.New("WEBHOOK_MAX_BODY_BYTES must be positive")
	}
	return nil
}

func (c appConfig) location() *time.Location {
	loc, err := time.LoadLocation(c.QuotaTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
