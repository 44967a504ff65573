package offer

import (
	"time"

	"github.com/giya-app/giya/id"
	"github.com/giya-app/giya/types"
)

// Offer is a redeemable item published by a business: a physical reward, a
// discount, or an exclusive perk. The three kinds share the redemption
// mechanics; Kind is the discriminant.
type Offer struct {
	types.Entity
	ID          id.OfferID        `json:"id"`
	BusinessID  id.BusinessID     `json:"business_id"`
	Kind        Kind              `json:"kind"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	// PointsRequired is debited from the customer at issuance time, not at
	// validation time.
	PointsRequired int64 `json:"points_required"`
	Active         bool  `json:"active"`
	// RedemptionLimit caps total issuances; 0 means unlimited.
	RedemptionLimit int64 `json:"redemption_limit"`
	RedemptionCount int64 `json:"redemption_count"`
	// Validity window; nil bounds are open-ended.
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	// DiscountPercent applies to KindDiscount offers only.
	DiscountPercent int               `json:"discount_percent,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Kind discriminates the offer variants.
type Kind string

const (
	KindReward    Kind = "reward"
	KindDiscount  Kind = "discount"
	KindExclusive Kind = "exclusive"
)

// InWindow reports whether the offer's validity window contains t.
func (o *Offer) InWindow(t time.Time) bool {
	if o.ValidFrom != nil && t.Before(*o.ValidFrom) {
		return false
	}
	if o.ValidUntil != nil && t.After(*o.ValidUntil) {
		return false
	}
	return true
}

// Exhausted reports whether the redemption limit has been reached.
func (o *Offer) Exhausted() bool {
	return o.RedemptionLimit > 0 && o.RedemptionCount >= o.RedemptionLimit
}
