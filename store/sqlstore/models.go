package sqlstore

import (
	"encoding/json"
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

// Row models mirror the domain structs with flat, database-friendly columns.
// IDs and Money are flattened to strings and integer minor units; converters
// below translate in both directions.

type accountModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	Balance   int64  `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (accountModel) TableName() string { return "accounts" }

type businessModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	Name          string `gorm:"size:255;not null"`
	SpendPerPoint int64  `gorm:"not null"`
	Active        bool   `gorm:"not null;default:true"`
	ReferralCode  string `gorm:"size:64;uniqueIndex:idx_businesses_referral_code,where:referral_code <> ''"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (businessModel) TableName() string { return "businesses" }

type offerModel struct {
	ID              string `gorm:"primaryKey;size:64"`
	BusinessID      string `gorm:"size:64;not null;index"`
	Kind            string `gorm:"size:32;not null"`
	Name            string `gorm:"size:255;not null"`
	Description     string
	PointsRequired  int64 `gorm:"not null"`
	Active          bool  `gorm:"not null;default:true"`
	RedemptionLimit int64 `gorm:"not null;default:0"`
	RedemptionCount int64 `gorm:"not null;default:0"`
	ValidFrom       *time.Time
	ValidUntil      *time.Time
	DiscountPercent int
	Metadata        string // JSON object, empty when no metadata
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (offerModel) TableName() string { return "offers" }

type accrualModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	AccountID     string `gorm:"size:64;not null;index"`
	BusinessID    string `gorm:"size:64;not null;index"`
	AmountSpent   int64  `gorm:"not null"`
	Currency      string `gorm:"size:8;not null"`
	PointsGranted int64  `gorm:"not null"`
	Ref           string `gorm:"size:255;uniqueIndex:idx_accruals_ref,where:ref <> ''"`
	CreatedAt     time.Time
}

func (accrualModel) TableName() string { return "accruals" }

type tokenModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	Code          string `gorm:"size:64;not null;uniqueIndex"`
	AccountID     string `gorm:"size:64;not null;index"`
	OfferID       string `gorm:"size:64;not null;index"`
	BusinessID    string `gorm:"size:64;not null;index"`
	PointsDebited int64  `gorm:"not null"`
	State         string `gorm:"size:16;not null"`
	IssuedAt      time.Time
	ConsumedAt    *time.Time
	ConsumedBy    string `gorm:"size:255"`
	CancelledAt   *time.Time
}

func (tokenModel) TableName() string { return "redemption_tokens" }

type commissionModel struct {
	ID                string `gorm:"primaryKey;size:64"`
	ReferrerAccountID string `gorm:"size:64;not null;index"`
	SourceAccrualID   string `gorm:"size:64;not null;uniqueIndex"`
	Amount            int64  `gorm:"not null"`
	CreatedAt         time.Time
}

func (commissionModel) TableName() string { return "commission_grants" }

// ──────────────────────────────────────────────────
// Converters
// ──────────────────────────────────────────────────

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:        a.ID.String(),
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) *account.Account {
	return &account.Account{
		Entity:  types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:      id.MustParse(m.ID),
		Balance: m.Balance,
	}
}

func toBusinessModel(b *business.Business) *businessModel {
	return &businessModel{
		ID:            b.ID.String(),
		Name:          b.Name,
		SpendPerPoint: b.SpendPerPoint,
		Active:        b.Active,
		ReferralCode:  b.ReferralCode,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func fromBusinessModel(m *businessModel) *business.Business {
	return &business.Business{
		Entity:        types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:            id.MustParse(m.ID),
		Name:          m.Name,
		SpendPerPoint: m.SpendPerPoint,
		Active:        m.Active,
		ReferralCode:  m.ReferralCode,
	}
}

func toOfferModel(o *offer.Offer) (*offerModel, error) {
	metadata := ""
	if len(o.Metadata) > 0 {
		raw, err := json.Marshal(o.Metadata)
		if err != nil {
			return nil, err
		}
		metadata = string(raw)
	}

	return &offerModel{
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
		Metadata:        metadata,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}, nil
}

func fromOfferModel(m *offerModel) (*offer.Offer, error) {
	var metadata map[string]string
	if m.Metadata != "" {
		if err := json.Unmarshal([]byte(m.Metadata), &metadata); err != nil {
			return nil, err
		}
	}

	return &offer.Offer{
		Entity:          types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:              id.MustParse(m.ID),
		BusinessID:      id.MustParse(m.BusinessID),
		Kind:            offer.Kind(m.Kind),
		Name:            m.Name,
		Description:     m.Description,
		PointsRequired:  m.PointsRequired,
		Active:          m.Active,
		RedemptionLimit: m.RedemptionLimit,
		RedemptionCount: m.RedemptionCount,
		ValidFrom:       m.ValidFrom,
		ValidUntil:      m.ValidUntil,
		DiscountPercent: m.DiscountPercent,
		Metadata:        metadata,
	}, nil
}

func toAccrualModel(r *accrual.Record) *accrualModel {
	return &accrualModel{
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

func fromAccrualModel(m *accrualModel) *accrual.Record {
	return &accrual.Record{
		ID:            id.MustParse(m.ID),
		AccountID:     id.MustParse(m.AccountID),
		BusinessID:    id.MustParse(m.BusinessID),
		AmountSpent:   types.Money{Amount: m.AmountSpent, Currency: m.Currency},
		PointsGranted: m.PointsGranted,
		Ref:           m.Ref,
		CreatedAt:     m.CreatedAt,
	}
}

func toTokenModel(t *redemption.Token) *tokenModel {
	return &tokenModel{
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

func fromTokenModel(m *tokenModel) *redemption.Token {
	return &redemption.Token{
		ID:            id.MustParse(m.ID),
		Code:          m.Code,
		AccountID:     id.MustParse(m.AccountID),
		OfferID:       id.MustParse(m.OfferID),
		BusinessID:    id.MustParse(m.BusinessID),
		PointsDebited: m.PointsDebited,
		State:         redemption.State(m.State),
		IssuedAt:      m.IssuedAt,
		ConsumedAt:    m.ConsumedAt,
		ConsumedBy:    m.ConsumedBy,
		CancelledAt:   m.CancelledAt,
	}
}

func toCommissionModel(g *commission.Grant) *commissionModel {
	return &commissionModel{
		ID:                g.ID.String(),
		ReferrerAccountID: g.ReferrerAccountID.String(),
		SourceAccrualID:   g.SourceAccrualID.String(),
		Amount:            g.Amount,
		CreatedAt:         g.CreatedAt,
	}
}

func fromCommissionModel(m *commissionModel) *commission.Grant {
	return &commission.Grant{
		ID:                id.MustParse(m.ID),
		ReferrerAccountID: id.MustParse(m.ReferrerAccountID),
		SourceAccrualID:   id.MustParse(m.SourceAccrualID),
		Amount:            m.Amount,
		CreatedAt:         m.CreatedAt,
	}
}
