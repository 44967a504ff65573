package offer

import (
	"context"

	"github.com/giya-app/giya/id"
)

type Store interface {
	Create(ctx context.Context, o *Offer) error
	Get(ctx context.Context, offerID id.OfferID) (*Offer, error)
	List(ctx context.Context, businessID id.BusinessID, opts ListOpts) ([]*Offer, error)
	Update(ctx context.Context, o *Offer) error
	Deactivate(ctx context.Context, offerID id.OfferID) error

	// ReserveSlot conditionally increments RedemptionCount, succeeding only
	// while the offer is active and under its redemption limit. Concurrent
	// callers racing for the last slot must not both succeed.
	ReserveSlot(ctx context.Context, offerID id.OfferID) error
	// ReleaseSlot decrements RedemptionCount as the compensating action for
	// a cancelled redemption. It never takes the count below zero.
	ReleaseSlot(ctx context.Context, offerID id.OfferID) error
}

type ListOpts struct {
	Kind       Kind
	ActiveOnly bool
	Limit      int
	Offset     int
}
