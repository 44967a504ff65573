package accrual

import (
	"context"

	"github.com/giya-app/giya/id"
)

type Store interface {
	// Append inserts an immutable record. Inserting a second record with the
	// same non-empty Ref fails with a duplicate-record error.
	Append(ctx context.Context, r *Record) error
	Get(ctx context.Context, recordID id.AccrualID) (*Record, error)
	GetByRef(ctx context.Context, ref string) (*Record, error)
	List(ctx context.Context, accountID id.AccountID, opts ListOpts) ([]*Record, error)
}
