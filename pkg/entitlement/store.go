package entitlement

import "context"

// Store persists entitlement records with optimistic concurrency.
//
// Get returns ErrRecordNotFound for unknown users and must hand out a copy
// that the caller may mutate freely.
//
// Save writes rec only if the stored version still equals rec.Version
// (0 meaning "no row yet") and returns ErrConflict otherwise. On success
// rec.Version is advanced to the stored version.
type Store interface {
	Get(ctx context.Context, userID string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
}
