package redemption

import (
	"time"

	"github.com/giya-app/giya/id"
)

// Token is a single-use redemption voucher. It is minted in the same
// transaction as the points debit and transitions state exactly once:
// issued → consumed (validated by the business) or issued → cancelled
// (compensating refund). Once non-issued it is immutable.
type Token struct {
	ID id.RedemptionID `json:"id"`
	// Code is the opaque, unguessable string rendered as a QR code or typed
	// in manually. It is the lookup key at validation time; nothing ever
	// parses structure out of it.
	Code       string        `json:"code"`
	AccountID  id.AccountID  `json:"account_id"`
	OfferID    id.OfferID    `json:"offer_id"`
	BusinessID id.BusinessID `json:"business_id"`
	// PointsDebited snapshots the offer's PointsRequired at issue time.
	PointsDebited int64      `json:"points_debited"`
	State         State      `json:"state"`
	IssuedAt      time.Time  `json:"issued_at"`
	ConsumedAt    *time.Time `json:"consumed_at,omitempty"`
	// ConsumedBy identifies the business actor that validated the token.
	ConsumedBy  string     `json:"consumed_by,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// State is the redemption token lifecycle state.
type State string

const (
	StateIssued    State = "issued"
	StateConsumed  State = "consumed"
	StateCancelled State = "cancelled"
)

type ListOpts struct {
	State  State
	Limit  int
	Offset int
}
