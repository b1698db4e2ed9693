package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrymomot/paygate/pkg/pg"
)

// CustomerIndex maps vendor customer ids to internal users so subscription
// events that carry no user metadata can still be resolved.
type CustomerIndex interface {
	// Lookup returns ErrCustomerNotFound for unknown customers.
	Lookup(ctx context.Context, vendor Vendor, customerID string) (string, error)
	Link(ctx context.Context, link CustomerLink) error
}

// MemoryCustomerIndex keeps links in process memory.
type MemoryCustomerIndex struct {
	links sync.Map // map[string]string
}

func NewMemoryCustomerIndex() *MemoryCustomerIndex {
	return &MemoryCustomerIndex{}
}

func (m *MemoryCustomerIndex) Lookup(_ context.Context, vendor Vendor, customerID string) (string, error) {
	v, ok := m.links.Load(string(vendor) + ":" + customerID)
	if !ok {
		return "", ErrCustomerNotFound
	}
	return v.(string), nil
}

func (m *MemoryCustomerIndex) Link(_ context.Context, link CustomerLink) error {
	if link.CustomerID == "" || link.UserID == "" {
		return fmt.Errorf("link requires customer and user ids")
	}
	m.links.Store(string(link.Vendor)+":"+link.CustomerID, link.UserID)
	return nil
}

// PostgresCustomerIndex stores links in billing_customers.
type PostgresCustomerIndex struct {
	db pg.DB
}

func NewPostgresCustomerIndex(db pg.DB) *PostgresCustomerIndex {
	if db == nil {
		panic("billing: database handle is required")
	}
	return &PostgresCustomerIndex{db: db}
}

func (p *PostgresCustomerIndex) Lookup(ctx context.Context, vendor Vendor, customerID string) (string, error) {
	var userID string
	err := p.db.QueryRow(ctx,
		`SELECT user_id FROM billing_customers WHERE provider = $1 AND customer_id = $2`,
		string(vendor), customerID,
	).Scan(&userID)
	if pg.IsNotFoundError(err) {
		return "", ErrCustomerNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup billing customer: %w", err)
	}
	return userID, nil
}

// Link upserts the mapping; the latest checkout wins if a customer is relinked.
func (p *PostgresCustomerIndex) Link(ctx context.Context, link CustomerLink) error {
	if link.CustomerID == "" || link.UserID == "" {
		return fmt.Errorf("link requires customer and user ids")
	}
	_, err := p.db.Exec(ctx, `
INSERT INTO billing_customers (provider, customer_id, user_id)
VALUES ($1, $2, $3)
ON CONFLICT (provider, customer_id) DO UPDATE SET user_id = EXCLUDED.user_id`,
		string(link.Vendor), link.CustomerID, link.UserID,
	)
	if err != nil {
		return fmt.Errorf("link billing customer: %w", err)
	}
	return nil
}
