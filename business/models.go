package business

import (
	"github.com/giya-app/giya/id"
	"github.com/giya-app/giya/types"
)

// Business is a participating merchant profile. The accrual service reads
// SpendPerPoint from it; the redemption validator checks token ownership
// against its ID. CRUD beyond that belongs to the dashboard layer.
type Business struct {
	types.Entity
	ID   id.BusinessID `json:"id"`
	Name string        `json:"name"`
	// SpendPerPoint is the amount of spend, in minor currency units
	// (centavos), required to earn one point. A rate of 10000 grants one
	// point per ₱100.00 spent.
	SpendPerPoint int64  `json:"spend_per_point"`
	Active        bool   `json:"active"`
	ReferralCode  string `json:"referral_code,omitempty"`
}

type ListOpts struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}
