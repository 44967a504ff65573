package redemption

import (
	"context"
	"time"

	"github.com/giya-app/giya/id"
)

type Store interface {
	Create(ctx context.Context, t *Token) error
	Get(ctx context.Context, tokenID id.RedemptionID) (*Token, error)
	GetByCode(ctx context.Context, code string) (*Token, error)
	List(ctx context.Context, accountID id.AccountID, opts ListOpts) ([]*Token, error)

	// Consume conditionally flips the token from issued to consumed. The
	// condition is on the current state, so two simultaneous validation
	// attempts race safely: exactly one wins, the loser observes zero rows
	// and gets a token-already-consumed error. The caller must have already
	// verified the token exists.
	Consume(ctx context.Context, code string, consumedBy string, at time.Time) error
	// Cancel conditionally flips the token from issued to cancelled, with
	// the same single-winner semantics as Consume.
	Cancel(ctx context.Context, tokenID id.RedemptionID, at time.Time) error
}
