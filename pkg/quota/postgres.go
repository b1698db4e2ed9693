package quota

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/paygate/pkg/pg"
)

// PostgresLedger stores counters in the usage_counters table.
type PostgresLedger struct {
	db pg.DB
}

// NewPostgresLedger creates a ledger on top of a pgx pool or transaction.
func NewPostgresLedger(db pg.DB) *PostgresLedger {
	if db == nil {
		panic("quota: database handle is required")
	}
	return &PostgresLedger{db: db}
}

// The WHERE clause on the conflict branch turns the upsert into a guarded
// increment: once count reaches $4 no row is updated and nothing is returned.
const consumeCounter = `
INSERT INTO usage_counters (user_id, feature, day, count, updated_at)
VALUES ($1, $2, $3, 1, now())
ON CONFLICT (user_id, feature, day) DO UPDATE
    SET count = usage_counters.count + 1, updated_at = now()
    WHERE usage_counters.count < $4
RETURNING count`

const selectCounter = `SELECT count FROM usage_counters WHERE user_id = $1 AND feature = $2 AND day = $3`

func (l *PostgresLedger) Consume(ctx context.Context, key Key, limit int64) (int64, bool, error) {
	if err := key.Validate(); err != nil {
		return 0, false, err
	}
	if limit <= 0 {
		return 0, false, nil
	}
	day, err := key.date()
	if err != nil {
		return 0, false, err
	}

	var count int64
	err = l.db.QueryRow(ctx, consumeCounter, key.UserID, key.Feature, day, limit).Scan(&count)
	if err == nil {
		return count, true, nil
	}
	if !pg.IsNotFoundError(err) {
		return 0, false, fmt.Errorf("consume usage counter: %w", err)
	}

	count, err = l.Count(ctx, key)
	if err != nil {
		return 0, false, err
	}
	return count, false, nil
}

func (l *PostgresLedger) Count(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	day, err := key.date()
	if err != nil {
		return 0, err
	}

	var count int64
	err = l.db.QueryRow(ctx, selectCounter, key.UserID, key.Feature, day).Scan(&count)
	if pg.IsNotFoundError(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select usage counter: %w", err)
	}
	return count, nil
}

func (l *PostgresLedger) Reset(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	day, err := key.date()
	if err != nil {
		return err
	}
	if _, err := l.db.Exec(ctx,
		`DELETE FROM usage_counters WHERE user_id = $1 AND feature = $2 AND day = $3`,
		key.UserID, key.Feature, day,
	); err != nil {
		return fmt.Errorf("reset usage counter: %w", err)
	}
	return nil
}
