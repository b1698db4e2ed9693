package webhooks

import (
	"log/slog"

	"github.com/dmitrymomot/paygate/pkg/billing"
)

// Option configures a Service.
type Option func(*Service)

// WithCustomerIndex persists customer links found in checkout events.
func WithCustomerIndex(index billing.CustomerIndex) Option {
	return func(s *Service) {
		s.customers = index
	}
}

// WithAnomalyRecorder sets the durable anomaly sink. A failure to record
// fails the delivery so the provider retries it. Defaults to logging only.
func WithAnomalyRecorder(rec billing.AnomalyRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.anomalies = rec
		}
	}
}

// WithAnomalyNotifier adds a best-effort sink, e.g. an e-mail alert.
func WithAnomalyNotifier(n billing.AnomalyRecorder) Option {
	return func(s *Service) {
		if n != nil {
			s.notifiers = append(s.notifiers, n)
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBody = n
		}
	}
}
