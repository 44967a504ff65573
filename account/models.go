package account

import (
	"github.com/giya-app/giya/id"
	"github.com/giya-app/giya/types"
)

// Account is one participant's points balance. Customers earn into it by
// visiting businesses; referrers earn into it through commission grants.
// Balance is mutated exclusively through the store's AdjustBalance delta
// operation and can never go negative.
type Account struct {
	types.Entity
	ID      id.AccountID `json:"id"`
	Balance int64        `json:"balance"`
}
