package accrual

import (
	"time"

	"github.com/giya-app/giya/id"
	"github.com/giya-app/giya/types"
)

// Record is one points grant from a purchase. Records are append-only: they
// are written once in the same transaction as the balance credit and never
// mutated or deleted afterwards.
type Record struct {
	ID            id.AccrualID  `json:"id"`
	AccountID     id.AccountID  `json:"account_id"`
	BusinessID    id.BusinessID `json:"business_id"`
	AmountSpent   types.Money   `json:"amount_spent"`
	PointsGranted int64         `json:"points_granted"`
	// Ref is the caller-supplied idempotency key, typically the external
	// payment transaction id. At most one record per non-empty Ref exists.
	Ref       string    `json:"ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ListOpts struct {
	BusinessID id.BusinessID
	Limit      int
	Offset     int
}
