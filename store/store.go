package store

import (
	"context"
	"time"

	"github.com/giya-app/giya/account"
	"github.com/giya-app/giya/accrual"
	"github.com/giya-app/giya/business"
	"github.com/giya-app/giya/commission"
	"github.com/giya-app/giya/id"
	"github.com/giya-app/giya/offer"
	"github.com/giya-app/giya/redemption"
)

// Store is the unified storage interface for all Giya entities. It is the
// only component holding durable state; every balance mutation funnels
// through AdjustBalance and every multi-step ledger operation runs inside
// WithTransaction. Instead of embedding the sub-interfaces, we explicitly
// declare all methods to avoid naming conflicts.
type Store interface {
	// Account methods
	CreateAccount(ctx context.Context, a *account.Account) error
	GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error)
	// AdjustBalance applies a signed points delta under a non-negative
	// balance guard and returns the new balance. A delta that would take the
	// balance negative fails with ErrInsufficientBalance and performs no
	// mutation.
	AdjustBalance(ctx context.Context, accountID id.AccountID, delta int64) (int64, error)

	// Business methods
	CreateBusiness(ctx context.Context, b *business.Business) error
	GetBusiness(ctx context.Context, businessID id.BusinessID) (*business.Business, error)
	ListBusinesses(ctx context.Context, opts business.ListOpts) ([]*business.Business, error)
	UpdateBusiness(ctx context.Context, b *business.Business) error

	// Offer methods
	CreateOffer(ctx context.Context, o *offer.Offer) error
	GetOffer(ctx context.Context, offerID id.OfferID) (*offer.Offer, error)
	ListOffers(ctx context.Context, businessID id.BusinessID, opts offer.ListOpts) ([]*offer.Offer, error)
	UpdateOffer(ctx context.Context, o *offer.Offer) error
	DeactivateOffer(ctx context.Context, offerID id.OfferID) error
	// ReserveOfferSlot conditionally increments the offer's redemption count
	// while it is active and under its limit; zero rows affected means the
	// offer is exhausted (or was deactivated mid-flight).
	ReserveOfferSlot(ctx context.Context, offerID id.OfferID) error
	// ReleaseOfferSlot is the compensating decrement for a cancelled
	// redemption; it never takes the count below zero.
	ReleaseOfferSlot(ctx context.Context, offerID id.OfferID) error

	// Accrual methods (append-only)
	AppendAccrual(ctx context.Context, r *accrual.Record) error
	GetAccrual(ctx context.Context, recordID id.AccrualID) (*accrual.Record, error)
	GetAccrualByRef(ctx context.Context, ref string) (*accrual.Record, error)
	ListAccruals(ctx context.Context, accountID id.AccountID, opts accrual.ListOpts) ([]*accrual.Record, error)

	// Redemption token methods
	CreateToken(ctx context.Context, t *redemption.Token) error
	GetToken(ctx context.Context, tokenID id.RedemptionID) (*redemption.Token, error)
	GetTokenByCode(ctx context.Context, code string) (*redemption.Token, error)
	ListTokens(ctx context.Context, accountID id.AccountID, opts redemption.ListOpts) ([]*redemption.Token, error)
	// ConsumeToken / CancelToken flip token state away from issued with a
	// condition on the current state, so concurrent attempts have exactly
	// one winner. Losers observe the same error kind on every backend:
	// ErrTokenAlreadyConsumed for consumed tokens, ErrTokenCancelled for
	// cancelled ones.
	ConsumeToken(ctx context.Context, code string, consumedBy string, at time.Time) error
	CancelToken(ctx context.Context, tokenID id.RedemptionID, at time.Time) error

	// Commission methods (append-only)
	AppendCommission(ctx context.Context, g *commission.Grant) error
	GetCommissionBySource(ctx context.Context, sourceAccrualID id.AccrualID) (*commission.Grant, error)
	ListCommissions(ctx context.Context, referrerAccountID id.AccountID, opts commission.ListOpts) ([]*commission.Grant, error)

	// WithTransaction runs fn atomically: either every mutation fn makes is
	// durable or none is. fn receives a transaction-scoped context and Store
	// view; mutations outside that view are not covered. Implementations
	// report serialization failures as ErrTransactionConflict so the engine
	// can retry the whole closure.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
