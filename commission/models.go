package commission

import (
	"time"

	"github.com/giya-app/giya/id"
)

// Grant is a referral commission derived from one accrual record. The
// SourceAccrualID uniqueness constraint is what makes commission propagation
// idempotent: at most one grant ever exists per source record, no matter how
// many times propagation runs.
type Grant struct {
	ID                id.CommissionID `json:"id"`
	ReferrerAccountID id.AccountID    `json:"referrer_account_id"`
	SourceAccrualID   id.AccrualID    `json:"source_accrual_id"`
	Amount            int64           `json:"amount"`
	CreatedAt         time.Time       `json:"created_at"`
}

type ListOpts struct {
	Limit  int
	Offset int
}
