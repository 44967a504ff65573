package mongo

import (
	"time"

	"github.com/giya-app/giya/account"
	"github.com/giya-app/giya/accrual"
	"github.com/giya-app/giya/business"
	"github.com/giya-app/giya/commission"
	"github.com/giya-app/giya/id"
	"github.com/giya-app/giya/offer"
	"github.com/giya-app/giya/redemption"
	"github.com/giya-app/giya/types"
)

// Collection names.
const (
	collAccounts    = "accounts"
	collBusinesses  = "businesses"
	collOffers      = "offers"
	collAccruals    = "accruals"
	collTokens      = "redemption_tokens"
	collCommissions = "commission_grants"
)

// Document models mirror the domain structs with the entity ID stored as the
// Mongo _id.

type accountDoc struct {
	ID        string    `bson:"_id"`
	Balance   int64     `bson:"balance"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type businessDoc struct {
	ID            string    `bson:"_id"`
	Name          string    `bson:"name"`
	SpendPerPoint int64     `bson:"spend_per_point"`
	Active        bool      `bson:"active"`
	ReferralCode  string    `bson:"referral_code,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

type offerDoc struct {
	ID              string            `bson:"_id"`
	BusinessID      string            `bson:"business_id"`
	Kind            string            `bson:"kind"`
	Name            string            `bson:"name"`
	Description     string            `bson:"description,omitempty"`
	PointsRequired  int64             `bson:"points_required"`
	Active          bool              `bson:"active"`
	RedemptionLimit int64             `bson:"redemption_limit"`
	RedemptionCount int64             `bson:"redemption_count"`
	ValidFrom       *time.Time        `bson:"valid_from,omitempty"`
	ValidUntil      *time.Time        `bson:"valid_until,omitempty"`
	DiscountPercent int               `bson:"discount_percent,omitempty"`
	Metadata        map[string]string `bson:"metadata,omitempty"`
	CreatedAt       time.Time         `bson:"created_at"`
	UpdatedAt       time.Time         `bson:"updated_at"`
}

type accrualDoc struct {
	ID            string    `bson:"_id"`
	AccountID     string    `bson:"account_id"`
	BusinessID    string    `bson:"business_id"`
	AmountSpent   int64     `bson:"amount_spent"`
	Currency      string    `bson:"currency"`
	PointsGranted int64     `bson:"points_granted"`
	Ref           string    `bson:"ref,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
}

type tokenDoc struct {
	ID            string     `bson:"_id"`
	Code          string     `bson:"code"`
	AccountID     string     `bson:"account_id"`
	OfferID       string     `bson:"offer_id"`
	BusinessID    string     `bson:"business_id"`
	PointsDebited int64      `bson:"points_debited"`
	State         string     `bson:"state"`
	IssuedAt      time.Time  `bson:"issued_at"`
	ConsumedAt    *time.Time `bson:"consumed_at,omitempty"`
	ConsumedBy    string     `bson:"consumed_by,omitempty"`
	CancelledAt   *time.Time `bson:"cancelled_at,omitempty"`
}

type commissionDoc struct {
	ID                string    `bson:"_id"`
	ReferrerAccountID string    `bson:"referrer_account_id"`
	SourceAccrualID   string    `bson:"source_accrual_id"`
	Amount            int64     `bson:"amount"`
	CreatedAt         time.Time `bson:"created_at"`
}

// ──────────────────────────────────────────────────
// Converters
// ──────────────────────────────────────────────────

func toAccountDoc(a *account.Account) *accountDoc {
	return &accountDoc{
		ID:        a.ID.String(),
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func fromAccountDoc(d *accountDoc) *account.Account {
	return &account.Account{
		Entity:  types.Entity{CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		ID:      id.MustParse(d.ID),
		Balance: d.Balance,
	}
}

func toBusinessDoc(b *business.Business) *businessDoc {
	return &businessDoc{
		ID:            b.ID.String(),
		Name:          b.Name,
		SpendPerPoint: b.SpendPerPoint,
		Active:        b.Active,
		ReferralCode:  b.ReferralCode,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func fromBusinessDoc(d *businessDoc) *business.Business {
	return &business.Business{
		Entity:        types.Entity{CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		ID:            id.MustParse(d.ID),
		Name:          d.Name,
		SpendPerPoint: d.SpendPerPoint,
		Active:        d.Active,
		ReferralCode:  d.ReferralCode,
	}
}

func toOfferDoc(o *offer.Offer) *offerDoc {
	return &offerDoc{
		ID:              o.ID.String(),
		BusinessID:      o.BusinessID.String(),
		Kind:            string(o.Kind),
		Name:            o.Name,
		Description:     o.Description,
		PointsRequired:  o.PointsRequired,
		Active:          o.Active,
		RedemptionLimit: o.RedemptionLimit,
		RedemptionCount: o.RedemptionCount,
		ValidFrom:       o.ValidFrom,
		ValidUntil:      o.ValidUntil,
		DiscountPercent: o.DiscountPercent,
		Metadata:        o.Metadata,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func fromOfferDoc(d *offerDoc) *offer.Offer {
	return &offer.Offer{
		Entity:          types.Entity{CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		ID:              id.MustParse(d.ID),
		BusinessID:      id.MustParse(d.BusinessID),
		Kind:            offer.Kind(d.Kind),
		Name:            d.Name,
		Description:     d.Description,
		PointsRequired:  d.PointsRequired,
		Active:          d.Active,
		RedemptionLimit: d.RedemptionLimit,
		RedemptionCount: d.RedemptionCount,
		ValidFrom:       d.ValidFrom,
		ValidUntil:      d.ValidUntil,
		DiscountPercent: d.DiscountPercent,
		Metadata:        d.Metadata,
	}
}

func toAccrualDoc(r *accrual.Record) *accrualDoc {
	return &accrualDoc{
		ID:            r.ID.String(),
		AccountID:     r.AccountID.String(),
		BusinessID:    r.BusinessID.String(),
		AmountSpent:   r.AmountSpent.Amount,
		Currency:      r.AmountSpent.Currency,
		PointsGranted: r.PointsGranted,
		Ref:           r.Ref,
		CreatedAt:     r.CreatedAt,
	}
}

func fromAccrualDoc(d *accrualDoc) *accrual.Record {
	return &accrual.Record{
		ID:            id.MustParse(d.ID),
		AccountID:     id.MustParse(d.AccountID),
		BusinessID:    id.MustParse(d.BusinessID),
		AmountSpent:   types.Money{Amount: d.AmountSpent, Currency: d.Currency},
		PointsGranted: d.PointsGranted,
		Ref:           d.Ref,
		CreatedAt:     d.CreatedAt,
	}
}

func toTokenDoc(t *redemption.Token) *tokenDoc {
	return &tokenDoc{
		ID:            t.ID.String(),
		Code:          t.Code,
		AccountID:     t.AccountID.String(),
		OfferID:       t.OfferID.String(),
		BusinessID:    t.BusinessID.String(),
		PointsDebited: t.PointsDebited,
		State:         string(t.State),
		IssuedAt:      t.IssuedAt,
		ConsumedAt:    t.ConsumedAt,
		ConsumedBy:    t.ConsumedBy,
		CancelledAt:   t.CancelledAt,
	}
}

func fromTokenDoc(d *tokenDoc) *redemption.Token {
	return &redemption.Token{
		ID:            id.MustParse(d.ID),
		Code:          d.Code,
		AccountID:     id.MustParse(d.AccountID),
		OfferID:       id.MustParse(d.OfferID),
		BusinessID:    id.MustParse(d.BusinessID),
		PointsDebited: d.PointsDebited,
		State:         redemption.State(d.State),
		IssuedAt:      d.IssuedAt,
		ConsumedAt:    d.ConsumedAt,
		ConsumedBy:    d.ConsumedBy,
		CancelledAt:   d.CancelledAt,
	}
}

func toCommissionDoc(g *commission.Grant) *commissionDoc {
	return &commissionDoc{
		ID:                g.ID.String(),
		ReferrerAccountID: g.ReferrerAccountID.String(),
		SourceAccrualID:   g.SourceAccrualID.String(),
		Amount:            g.Amount,
		CreatedAt:         g.CreatedAt,
	}
}

func fromCommissionDoc(d *commissionDoc) *commission.Grant {
	return &commission.Grant{
		ID:                id.MustParse(d.ID),
		ReferrerAccountID: id.MustParse(d.ReferrerAccountID),
		SourceAccrualID:   id.MustParse(d.SourceAccrualID),
		Amount:            d.Amount,
		CreatedAt:         d.CreatedAt,
	}
}
