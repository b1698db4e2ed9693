package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrymomot/paygate/pkg/pg"
)

// PostgresStore keeps records in the entitlements table.
// The version column implements the compare-and-set required by Store.Save.
type PostgresStore struct {
	db pg.DB
}

// NewPostgresStore creates a store on top of a pgx pool or transaction.
func NewPostgresStore(db pg.DB) *PostgresStore {
	if db == nil {
		panic("entitlement: database handle is required")
	}
	return &PostgresStore{db: db}
}

const selectEntitlement = `
SELECT user_id, active_provider, COALESCE(provider_subscription_id, ''), expires_at,
       COALESCE(last_event_id, ''), last_event_timestamp, watermarks, version, created_at, updated_at
FROM entitlements
WHERE user_id = $1`

func (s *PostgresStore) Get(ctx context.Context, userID string) (*Record, error) {
	var (
		rec        Record
		provider   string
		lastEvent  *time.Time
		watermarks []byte
	)
	err := s.db.QueryRow(ctx, selectEntitlement, userID).Scan(
		&rec.UserID, &provider, &rec.ProviderSubscriptionID, &rec.ExpiresAt,
		&rec.LastEventID, &lastEvent, &watermarks, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select entitlement: %w", err)
	}

	rec.ActiveProvider = Provider(provider)
	if lastEvent != nil {
		rec.LastEventTimestamp = *lastEvent
	}
	rec.Watermarks = make(map[Provider]Watermark)
	if len(watermarks) > 0 {
		if err := json.Unmarshal(watermarks, &rec.Watermarks); err != nil {
			return nil, fmt.Errorf("decode watermarks: %w", err)
		}
	}
	return &rec, nil
}

const insertEntitlement = `
INSERT INTO entitlements (
    user_id, active_provider, provider_subscription_id, expires_at,
    last_event_id, last_event_timestamp, watermarks, version, created_at, updated_at
) VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7, 1, $8, $9)
ON CONFLICT (user_id) DO NOTHING`

const updateEntitlement = `
UPDATE entitlements SET
    active_provider = $2,
    provider_subscription_id = NULLIF($3, ''),
    expires_at = $4,
    last_event_id = NULLIF($5, ''),
    last_event_timestamp = $6,
    watermarks = $7,
    version = version + 1,
    updated_at = $9
WHERE user_id = $1 AND version = $8`

func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.UserID == "" {
		return ErrMissingUserID
	}
	watermarks, err := json.Marshal(rec.Watermarks)
	if err != nil {
		return fmt.Errorf("encode watermarks: %w", err)
	}
	var lastEvent *time.Time
	if !rec.LastEventTimestamp.IsZero() {
		ts := rec.LastEventTimestamp
		lastEvent = &ts
	}

	if rec.Version == 0 {
		tag, err := s.db.Exec(ctx, insertEntitlement,
			rec.UserID, string(rec.ActiveProvider), rec.ProviderSubscriptionID, rec.ExpiresAt,
			rec.LastEventID, lastEvent, watermarks, rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert entitlement: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		rec.Version = 1
		return nil
	}

	tag, err := s.db.Exec(ctx, updateEntitlement,
		rec.UserID, string(rec.ActiveProvider), rec.ProviderSubscriptionID, rec.ExpiresAt,
		rec.LastEventID, lastEvent, watermarks, rec.Version, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update entitlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	rec.Version++
	return nil
}
