package webhooks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/paygate/pkg/billing"
	"github.com/dmitrymomot/paygate/pkg/entitlement"
	"github.com/dmitrymomot/paygate/pkg/logger"
	"github.com/dmitrymomot/paygate/pkg/response"
)

// DefaultMaxBodyBytes bounds webhook bodies.
const DefaultMaxBodyBytes int64 = 1 << 20

// Applier reconciles normalized commands. *entitlement.Engine satisfies it.
type Applier interface {
	Apply(ctx context.Context, cmd entitlement.Command) (*entitlement.Result, error)
}

// Observer receives one call per delivery. *metrics.Metrics satisfies it.
type Observer interface {
	WebhookEvent(provider, action, outcome string, elapsed time.Duration)
	Anomaly(provider string)
}

type noopObserver struct{}

func (noopObserver) WebhookEvent(string, string, string, time.Duration) {}
func (noopObserver) Anomaly(string)                                     {}

// Service is the webhook ingress: verify, normalize, reconcile, acknowledge.
//
// A 2xx answer is only sent once the outcome is durable, so the provider's
// redelivery covers every failure after verification.
type Service struct {
	processor billing.Source
	relay     billing.Source
	engine    Applier
	customers billing.CustomerIndex
	anomalies billing.AnomalyRecorder
	notifiers []billing.AnomalyRecorder
	observer  Observer
	log       *slog.Logger
	maxBody   int64
}

// New creates the ingress for the processor and relay sources.
func New(engine Applier, processor, relay billing.Source, opts ...Option) *Service {
	if engine == nil {
		panic("webhooks: entitlement applier is required")
	}
	s := &Service{
		processor: processor,
		relay:     relay,
		engine:    engine,
		observer:  noopObserver{},
		log:       slog.Default(),
		maxBody:   DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.anomalies == nil {
		s.anomalies = billing.NewLogAnomalyRecorder(s.log)
	}
	return s
}

// Routes mounts POST /processor and POST /relay.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()
	if s.processor.Verifier != nil && s.processor.Normalizer != nil {
		r.Post("/processor", s.handle(s.processor))
	}
	if s.relay.Verifier != nil && s.relay.Normalizer != nil {
		r.Post("/relay", s.handle(s.relay))
	}
	return r
}

type ack struct {
	EventID string `json:"event_id"`
	Action  string `json:"action"`
	Outcome string `json:"outcome"`
}

func (s *Service) handle(src billing.Source) http.HandlerFunc {
	provider := string(src.Normalizer.Provider())
	log := s.log.With(
		logger.Component("webhooks"),
		logger.Provider(provider),
		slog.String("vendor", string(src.Normalizer.Vendor())),
	)

	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.observer.WebhookEvent(provider, "unknown", "too_large", time.Since(start))
				response.Error(w, response.ErrRequestEntityTooLarge, "webhook body too large", nil)
				return
			}
			s.observer.WebhookEvent(provider, "unknown", "malformed", time.Since(start))
			response.Error(w, response.ErrBadRequest, "unreadable body", nil)
			return
		}

		if err := src.Verifier.Verify(r, body); err != nil {
			log.WarnContext(ctx, "webhook signature rejected", logger.Error(err))
			s.observer.WebhookEvent(provider, "unknown", "invalid_signature", time.Since(start))
			response.Error(w, response.ErrBadRequest, "invalid signature", nil)
			return
		}

		res, err := src.Normalizer.Normalize(ctx, body)
		if err != nil {
			if errors.Is(err, billing.ErrMalformedPayload) {
				log.WarnContext(ctx, "malformed webhook payload", logger.Error(err))
				s.observer.WebhookEvent(provider, "unknown", "malformed", time.Since(start))
				response.Error(w, response.ErrBadRequest, "malformed payload", nil)
				return
			}
			s.nack(ctx, w, log, provider, "unknown", start, "webhook normalization failed", err)
			return
		}
		cmd := res.Command
		evLog := log.With(logger.EventID(cmd.EventID), logger.EventType(cmd.EventType), logger.UserID(cmd.UserID))

		if res.Link != nil && s.customers != nil {
			if err := s.customers.Link(ctx, *res.Link); err != nil {
				s.nack(ctx, w, evLog, provider, string(cmd.Action), start, "customer link failed", err)
				return
			}
		}

		if res.Anomaly != nil {
			if err := s.anomalies.Record(ctx, *res.Anomaly); err != nil {
				s.nack(ctx, w, evLog, provider, string(cmd.Action), start, "anomaly could not be recorded", err)
				return
			}
			s.observer.Anomaly(provider)
			s.notify(ctx, evLog, *res.Anomaly)
		}

		result, err := s.engine.Apply(ctx, cmd)
		if err != nil {
			if errors.Is(err, entitlement.ErrInvalidCommand) {
				evLog.WarnContext(ctx, "webhook produced an invalid command", logger.Error(err))
				s.observer.WebhookEvent(provider, string(cmd.Action), "invalid", time.Since(start))
				response.Error(w, response.ErrBadRequest, "payload lacks required fields", nil)
				return
			}
			s.nack(ctx, w, evLog, provider, string(cmd.Action), start, "entitlement reconciliation failed", err)
			return
		}

		elapsed := time.Since(start)
		s.observer.WebhookEvent(provider, string(cmd.Action), string(result.Outcome), elapsed)
		evLog.InfoContext(ctx, "webhook processed",
			logger.Action(string(cmd.Action)),
			logger.Outcome(string(result.Outcome)),
			logger.RetryCount(max(result.Attempts-1, 0)),
			logger.Duration(elapsed),
		)

		response.JSON(w, http.StatusOK, ack{
			EventID: cmd.EventID,
			Action:  string(cmd.Action),
			Outcome: string(result.Outcome),
		}, nil)
	}
}

// nack answers 500 so the provider redelivers.
func (s *Service) nack(ctx context.Context, w http.ResponseWriter, log *slog.Logger, provider, action string, start time.Time, msg string, err error) {
	log.ErrorContext(ctx, msg, logger.Error(err))
	s.observer.WebhookEvent(provider, action, "error", time.Since(start))
	response.Error(w, response.ErrInternalServerError, "event not processed, retry later", nil)
}

// notify forwards an anomaly to best-effort notifiers. Failures are logged only.
func (s *Service) notify(ctx context.Context, log *slog.Logger, a billing.Anomaly) {
	for _, n := range s.notifiers {
		if err := n.Record(ctx, a); err != nil {
			log.ErrorContext(ctx, "anomaly notification failed", logger.Error(err))
		}
	}
}
