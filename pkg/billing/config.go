package billing

import (
	"errors"
	"fmt"
	"time"
)

// Processor kinds accepted by PROCESSOR_KIND.
const (
	ProcessorStripe = "stripe"
	ProcessorPaddle = "paddle"
)

// Config holds webhook credentials and normalizer switches.
type Config struct {
	ProcessorKind           string        `env:"PROCESSOR_KIND" envDefault:"stripe"`
	StripeWebhookSecret     string        `env:"STRIPE_WEBHOOK_SECRET"`
	StripeWebhookTolerance  time.Duration `env:"STRIPE_WEBHOOK_TOLERANCE" envDefault:"5m"`
	PaddleWebhookSecret     string        `env:"PADDLE_WEBHOOK_SECRET"`
	RevenueCatWebhookAuth   string        `env:"REVENUECAT_WEBHOOK_AUTH,required"`
	RevenueCatEntitlementID string        `env:"REVENUECAT_ENTITLEMENT_ID"`
	RevenueCatAllowSandbox  bool          `env:"REVENUECAT_ALLOW_SANDBOX" envDefault:"false"`
	AnomalyAlertEmail       string        `env:"ANOMALY_ALERT_EMAIL"`
}

// Validate reports missing credentials for the enabled providers.
func (c Config) Validate() error {
	var errs []error
	switch c.ProcessorKind {
	case ProcessorStripe:
		if c.StripeWebhookSecret == "" {
			errs = append(errs, fmt.Errorf("%w: STRIPE_WEBHOOK_SECRET", ErrMissingWebhookSecret))
		}
	case ProcessorPaddle:
		if c.PaddleWebhookSecret == "" {
			errs = append(errs, fmt.Errorf("%w: PADDLE_WEBHOOK_SECRET", ErrMissingWebhookSecret))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownProcessor, c.ProcessorKind))
	}
	if c.RevenueCatWebhookAuth == "" {
		errs = append(errs, fmt.Errorf("%w: REVENUECAT_WEBHOOK_AUTH", ErrMissingWebhookSecret))
	}
	return errors.Join(errs...)
}

// Source pairs the verifier and normalizer of one webhook endpoint.
type Source struct {
	Verifier   Verifier
	Normalizer Normalizer
}

// NewProcessorSource builds the processor-style source selected by cfg.ProcessorKind.
func NewProcessorSource(cfg Config, customers CustomerIndex) (Source, error) {
	switch cfg.ProcessorKind {
	case ProcessorStripe:
		v, err := NewStripeVerifier(cfg.StripeWebhookSecret, cfg.StripeWebhookTolerance)
		if err != nil {
			return Source{}, err
		}
		return Source{Verifier: v, Normalizer: NewStripeNormalizer(customers)}, nil
	case ProcessorPaddle:
		v, err := NewPaddleVerifier(cfg.PaddleWebhookSecret)
		if err != nil {
			return Source{}, err
		}
		return Source{Verifier: v, Normalizer: NewPaddleNormalizer(customers)}, nil
	default:
		return Source{}, fmt.Errorf("%w: %q", ErrUnknownProcessor, cfg.ProcessorKind)
	}
}

// NewRelaySource builds the RevenueCat source.
func NewRelaySource(cfg Config) (Source, error) {
	v, err := NewRevenueCatVerifier(cfg.RevenueCatWebhookAuth)
	if err != nil {
		return Source{}, err
	}
	return Source{
		Verifier: v,
		Normalizer: NewRevenueCatNormalizer(
			WithEntitlementID(cfg.RevenueCatEntitlementID),
			WithSandbox(cfg.RevenueCatAllowSandbox),
		),
	}, nil
}
