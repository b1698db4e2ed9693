package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/paygate/pkg/email"
	"github.com/dmitrymomot/paygate/pkg/email/templates"
	"github.com/dmitrymomot/paygate/pkg/entitlement"
	"github.com/dmitrymomot/paygate/pkg/logger"
	"github.com/dmitrymomot/paygate/pkg/pg"
)

// Anomaly is a webhook event that was acknowledged but could not be applied
// and needs a human to look at it.
type Anomaly struct {
	ID        uuid.UUID
	Provider  entitlement.Provider
	Vendor    Vendor
	EventID   string
	EventType string
	Reason    string
	Payload   []byte
	CreatedAt time.Time
}

// anomalyNamespace scopes the name-based anomaly ids.
var anomalyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://paygate/billing-anomalies"))

// AnomalyID derives a stable id from the vendor and event id, so redeliveries
// of the same event map onto one billing_anomalies row.
func AnomalyID(vendor Vendor, eventID string) uuid.UUID {
	if eventID == "" {
		return uuid.New()
	}
	return uuid.NewSHA1(anomalyNamespace, []byte(string(vendor)+":"+eventID))
}

func newAnomaly(provider entitlement.Provider, vendor Vendor, eventID, eventType, reason string, payload []byte) *Anomaly {
	return &Anomaly{
		ID:        AnomalyID(vendor, eventID),
		Provider:  provider,
		Vendor:    vendor,
		EventID:   eventID,
		EventType: eventType,
		Reason:    reason,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// AnomalyRecorder persists or forwards anomalies.
type AnomalyRecorder interface {
	Record(ctx context.Context, a Anomaly) error
}

// LogAnomalyRecorder writes anomalies to the structured log at WARN.
type LogAnomalyRecorder struct {
	log *slog.Logger
}

func NewLogAnomalyRecorder(log *slog.Logger) *LogAnomalyRecorder {
	if log == nil {
		log = slog.Default()
	}
	return &LogAnomalyRecorder{log: log}
}

func (r *LogAnomalyRecorder) Record(ctx context.Context, a Anomaly) error {
	r.log.WarnContext(ctx, "billing event needs manual follow-up",
		slog.Bool("anomaly", true),
		slog.String("anomaly_id", a.ID.String()),
		logger.Provider(string(a.Provider)),
		slog.String("vendor", string(a.Vendor)),
		logger.EventID(a.EventID),
		logger.EventType(a.EventType),
		slog.String("reason", a.Reason),
	)
	return nil
}

// PostgresAnomalyRecorder stores anomalies in billing_anomalies.
type PostgresAnomalyRecorder struct {
	db pg.DB
}

func NewPostgresAnomalyRecorder(db pg.DB) *PostgresAnomalyRecorder {
	if db == nil {
		panic("billing: database handle is required")
	}
	return &PostgresAnomalyRecorder{db: db}
}

func (r *PostgresAnomalyRecorder) Record(ctx context.Context, a Anomaly) error {
	var payload []byte
	if json.Valid(a.Payload) {
		payload = a.Payload
	}
	_, err := r.db.Exec(ctx, `
INSERT INTO billing_anomalies (id, provider, vendor, event_id, event_type, reason, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`,
		a.ID, string(a.Provider), string(a.Vendor), a.EventID, a.EventType, a.Reason, payload, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert billing anomaly: %w", err)
	}
	return nil
}

// EmailAnomalyNotifier mails each anomaly to an operator address.
type EmailAnomalyNotifier struct {
	sender email.EmailSender
	to     string
}

func NewEmailAnomalyNotifier(sender email.EmailSender, to string) *EmailAnomalyNotifier {
	return &EmailAnomalyNotifier{sender: sender, to: to}
}

func (n *EmailAnomalyNotifier) Record(ctx context.Context, a Anomaly) error {
	body, err := templates.Render(ctx, templates.AnomalyAlert(templates.AnomalyAlertParams{
		AnomalyID:  a.ID.String(),
		Provider:   string(a.Provider),
		Vendor:     string(a.Vendor),
		EventID:    a.EventID,
		EventType:  a.EventType,
		Reason:     a.Reason,
		ReceivedAt: a.CreatedAt,
	}))
	if err != nil {
		return fmt.Errorf("render anomaly email: %w", err)
	}
	return n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   n.to,
		Subject:  fmt.Sprintf("[paygate] %s %s: %s", a.Vendor, a.EventType, a.Reason),
		BodyHTML: body,
		BodyText: fmt.Sprintf("anomaly %s\nprovider %s (%s)\nevent %s %s\nreason %s\n",
			a.ID, a.Provider, a.Vendor, a.EventID, a.EventType, a.Reason),
		Tag: "billing-anomaly",
	})
}

// MultiAnomalyRecorder fans an anomaly out to every recorder and joins their errors.
type MultiAnomalyRecorder []AnomalyRecorder

func (m MultiAnomalyRecorder) Record(ctx context.Context, a Anomaly) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
