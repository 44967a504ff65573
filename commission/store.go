package commission

import (
	"context"

	"github.com/giya-app/giya/id"
)

type Store interface {
	// Append inserts an immutable grant. Inserting a second grant for the
	// same SourceAccrualID fails with a duplicate-record error.
	Append(ctx context.Context, g *Grant) error
	GetBySource(ctx context.Context, sourceAccrualID id.AccrualID) (*Grant, error)
	List(ctx context.Context, referrerAccountID id.AccountID, opts ListOpts) ([]*Grant, error)
}
