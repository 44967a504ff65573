package account

import (
	"context"

	"github.com/giya-app/giya/id"
)

type Store interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, accountID id.AccountID) (*Account, error)
	// AdjustBalance applies a signed delta and returns the new balance.
	// A delta that would take the balance negative must fail without mutation.
	AdjustBalance(ctx context.Context, accountID id.AccountID, delta int64) (int64, error)
}
