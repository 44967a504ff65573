// Package sqlstore provides a SQL-backed Store implementation on top of
// GORM. It supports SQLite (pure-Go driver, good for embedded and test use)
// and PostgreSQL (production deployments) through the OpenSQLite and
// OpenPostgres constructors.
package sqlstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	giya "github.com/giya-app/giya"
	"github.com/giya-app/giya/account"
	"github.com/giya-app/giya/accrual"
	"github.com/giya-app/giya/business"
	"github.com/giya-app/giya/commission"
	"github.com/giya-app/giya/id"
	"github.com/giya-app/giya/offer"
	"github.com/giya-app/giya/redemption"
	"github.com/giya-app/giya/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store backed by a relational database.
type Store struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) a SQLite database at path.
// Use ":memory:" for an in-process throwaway database.
func OpenSQLite(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// OpenPostgres connects to a PostgreSQL database with the given DSN.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// New wraps an existing GORM handle. The handle must have been opened with
// TranslateError enabled for duplicate-key detection to work.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}
}

// ──────────────────────────────────────────────────
// Transaction support
// ──────────────────────────────────────────────────

// WithTransaction runs fn inside a database transaction. The Store view
// passed to fn is bound to that transaction; a nested call joins it via
// GORM savepoints.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Store{db: tx})
	})
	if err != nil && isConflict(err) {
		return errors.Join(giya.ErrTransactionConflict, err)
	}
	return err
}

// isConflict reports whether err is a serialization or lock contention
// failure that the caller may retry.
func isConflict(err error) bool {
	msg := err.Error()
	for _, marker := range []string{
		"database is locked",
		"database table is locked",
		"deadlock detected",
		"could not serialize access",
		"SQLSTATE 40001",
		"SQLSTATE 40P01",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────────
// Account methods
// ──────────────────────────────────────────────────

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	if err := s.db.WithContext(ctx).Create(toAccountModel(a)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return giya.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	var m accountModel
	err := s.db.WithContext(ctx).Where("id = ?", accountID.String()).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, giya.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(&m), nil
}

func (s *Store) AdjustBalance(ctx context.Context, accountID id.AccountID, delta int64) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("id = ? AND balance + ? >= 0", accountID.String(), delta).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish a missing account from a guard failure.
		if _, err := s.GetAccount(ctx, accountID); err != nil {
			return 0, err
		}
		return 0, giya.ErrInsufficientBalance
	}

	var m accountModel
	if err := s.db.WithContext(ctx).Where("id = ?", accountID.String()).First(&m).Error; err != nil {
		return 0, err
	}
	return m.Balance, nil
}

// ──────────────────────────────────────────────────
// Business methods
// ──────────────────────────────────────────────────

func (s *Store) CreateBusiness(ctx context.Context, b *business.Business) error {
	if err := s.db.WithContext(ctx).Create(toBusinessModel(b)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return giya.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetBusiness(ctx context.Context, businessID id.BusinessID) (*business.Business, error) {
	var m businessModel
	err := s.db.WithContext(ctx).Where("id = ?", businessID.String()).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, giya.ErrBusinessNotFound
		}
		return nil, err
	}
	return fromBusinessModel(&m), nil
}

func (s *Store) ListBusinesses(ctx context.Context, opts business.ListOpts) ([]*business.Business, error) {
	q := s.db.WithContext(ctx).Model(&businessModel{}).Order("created_at")
	if opts.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	q = applyPage(q, opts.Offset, opts.Limit)

	var rows []businessModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]*business.Business, 0, len(rows))
	for i := range rows {
		result = append(result, fromBusinessModel(&rows[i]))
	}
	return result, nil
}

func (s *Store) UpdateBusiness(ctx context.Context, b *business.Business) error {
	res := s.db.WithContext(ctx).
		Model(&businessModel{}).
		Where("id = ?", b.ID.String()).
		Updates(map[string]any{
			"name":            b.Name,
			"spend_per_point": b.SpendPerPoint,
			"active":          b.Active,
			"referral_code":   b.ReferralCode,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return giya.ErrAlreadyExists
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return giya.ErrBusinessNotFound
	}
	return nil
}

// ──────────────────────────────────────────────────
// Offer methods
// ──────────────────────────────────────────────────

func (s *Store) CreateOffer(ctx context.Context, o *offer.Offer) error {
	m, err := toOfferModel(o)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return giya.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetOffer(ctx context.Context, offerID id.OfferID) (*offer.Offer, error) {
	var m offerModel
	err := s.db.WithContext(ctx).Where("id = ?", offerID.String()).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, giya.ErrOfferNotFound
		}
		return nil, err
	}
	return fromOfferModel(&m)
}

func (s *Store) ListOffers(ctx context.Context, businessID id.BusinessID, opts offer.ListOpts) ([]*offer.Offer, error) {
	q := s.db.WithContext(ctx).
		Model(&offerModel{}).
		Where("business_id = ?", businessID.String()).
		Order("created_at")
	if opts.Kind != "" {
		q = q.Where("kind = ?", string(opts.Kind))
	}
	if opts.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	q = applyPage(q, opts.Offset, opts.Limit)

	var rows []offerModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]*offer.Offer, 0, len(rows))
	for i := range rows {
		o, err := fromOfferModel(&rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, nil
}

func (s *Store) UpdateOffer(ctx context.Context, o *offer.Offer) error {
	m, err := toOfferModel(o)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Model(&offerModel{}).
		Where("id = ?", o.ID.String()).
		Updates(map[string]any{
			"kind":             m.Kind,
			"name":             m.Name,
			"description":      m.Description,
			"points_required":  m.PointsRequired,
			"active":           m.Active,
			"redemption_limit": m.RedemptionLimit,
			"valid_from":       m.ValidFrom,
			"valid_until":      m.ValidUntil,
			"discount_percent": m.DiscountPercent,
			"metadata":         m.Metadata,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return giya.ErrOfferNotFound
	}
	return nil
}

func (s *Store) DeactivateOffer(ctx context.Context, offerID id.OfferID) error {
	res := s.db.WithContext(ctx).
		Model(&offerModel{}).
		Where("id = ?", offerID.String()).
		Updates(map[string]any{"active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return giya.ErrOfferNotFound
	}
	return nil
}

func (s *Store) ReserveOfferSlot(ctx context.Context, offerID id.OfferID) error {
	res := s.db.WithContext(ctx).
		Model(&offerModel{}).
		Where("id = ? AND active = ? AND (redemption_limit = 0 OR redemption_count < redemption_limit)",
			offerID.String(), true).
		Updates(map[string]any{
			"redemption_count": gorm.Expr("redemption_count + 1"),
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetOffer(ctx, offerID); err != nil {
			return err
		}
		return giya.ErrOfferExhausted
	}
	return nil
}

func (s *Store) ReleaseOfferSlot(ctx context.Context, offerID id.OfferID) error {
	res := s.db.WithContext(ctx).
		Model(&offerModel{}).
		Where("id = ? AND redemption_count > 0", offerID.String()).
		Updates(map[string]any{
			"redemption_count": gorm.Expr("redemption_count - 1"),
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either missing or already at zero; only the former is an error.
		if _, err := s.GetOffer(ctx, offerID); err != nil {
			return err
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Accrual methods
// ──────────────────────────────────────────────────

func (s *Store) AppendAccrual(ctx context.Context, r *accrual.Record) error {
	if err := s.db.WithContext(ctx).Create(toAccrualModel(r)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return giya.ErrDuplicateRecord
		}
		return err
	}
	return nil
}

func (s *Store) GetAccrual(ctx context.Context, recordID id.AccrualID) (*accrual.Record, error) {
	var m accrualModel
	err := s.db.WithContext(ctx).Where("id = ?", recordID.String()).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, giya.ErrNotFound
		}
		return nil, err
	}
	return fromAccrualModel(&m), nil
}

func (s *Store) GetAccrualByRef(ctx context.Context, ref string) (*accrual.Record, error) {
	if ref == "" {
		return nil, giya.ErrNotFound
	}
	var m accrualModel
	err := s.db.WithContext(ctx).Where("ref = ?", ref).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, giya.ErrNotFound
		}
		return nil, err
	}
	return fromAccrualModel(&m), nil
}

func (s *Store) ListAccruals(ctx context.Context, accountID id.AccountID, opts accrual.ListOpts) ([]*accrual.Record, error) {
	q := s.db.WithContext(ctx).
		Model(&accrualModel{}).
		Where("account_id = ?", accountID.String()).
		Order("created_at")
	if !opts.BusinessID.IsNil() {
		q = q.Where("business_id = ?", opts.BusinessID.String())
	}
	q = applyPage(q, opts.Offset, opts.Limit)

	var rows []accrualModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]*accrual.Record, 0, len(rows))
	for i := range rows {
		result = append(result, fromAccrualModel(&rows[i]))
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Redemption token methods
// ──────────────────────────────────────────────────

func (s *Store) CreateToken(ctx context.Context, t *redemption.Token) error {
	if err := s.db.WithContext(ctx).Create(toTokenModel(t)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return giya.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetToken(ctx context.Context, tokenID id.RedemptionID) (*redemption.Token, error) {
	var m tokenModel
	err := s.db.WithContext(ctx).Where("id = ?", tokenID.String()).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, giya.ErrTokenNotFound
		}
		return nil, err
	}
	return fromTokenModel(&m), nil
}

func (s *Store) GetTokenByCode(ctx context.Context, code string) (*redemption.Token, error) {
	var m tokenModel
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, giya.ErrTokenNotFound
		}
		return nil, err
	}
	return fromTokenModel(&m), nil
}

func (s *Store) ListTokens(ctx context.Context, accountID id.AccountID, opts redemption.ListOpts) ([]*redemption.Token, error) {
	q := s.db.WithContext(ctx).
		Model(&tokenModel{}).
		Where("account_id = ?", accountID.String()).
		Order("issued_at")
	if opts.State != "" {
		q = q.Where("state = ?", string(opts.State))
	}
	q = applyPage(q, opts.Offset, opts.Limit)

	var rows []tokenModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]*redemption.Token, 0, len(rows))
	for i := range rows {
		result = append(result, fromTokenModel(&rows[i]))
	}
	return result, nil
}

func (s *Store) ConsumeToken(ctx context.Context, code string, consumedBy string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&tokenModel{}).
		Where("code = ? AND state = ?", code, string(redemption.StateIssued)).
		Updates(map[string]any{
			"state":       string(redemption.StateConsumed),
			"consumed_at": at,
			"consumed_by": consumedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		t, err := s.GetTokenByCode(ctx, code)
		if err != nil {
			return err
		}
		if t.State == redemption.StateCancelled {
			return giya.ErrTokenCancelled
		}
		return giya.ErrTokenAlreadyConsumed
	}
	return nil
}

func (s *Store) CancelToken(ctx context.Context, tokenID id.RedemptionID, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&tokenModel{}).
		Where("id = ? AND state = ?", tokenID.String(), string(redemption.StateIssued)).
		Updates(map[string]any{
			"state":        string(redemption.StateCancelled),
			"cancelled_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		t, err := s.GetToken(ctx, tokenID)
		if err != nil {
			return err
		}
		if t.State == redemption.StateCancelled {
			return giya.ErrTokenCancelled
		}
		return giya.ErrTokenAlreadyConsumed
	}
	return nil
}

// ──────────────────────────────────────────────────
// Commission methods
// ──────────────────────────────────────────────────

func (s *Store) AppendCommission(ctx context.Context, g *commission.Grant) error {
	if err := s.db.WithContext(ctx).Create(toCommissionModel(g)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return giya.ErrDuplicateRecord
		}
		return err
	}
	return nil
}

func (s *Store) GetCommissionBySource(ctx context.Context, sourceAccrualID id.AccrualID) (*commission.Grant, error) {
	var m commissionModel
	err := s.db.WithContext(ctx).Where("source_accrual_id = ?", sourceAccrualID.String()).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, giya.ErrCommissionNotFound
		}
		return nil, err
	}
	return fromCommissionModel(&m), nil
}

func (s *Store) ListCommissions(ctx context.Context, referrerAccountID id.AccountID, opts commission.ListOpts) ([]*commission.Grant, error) {
	q := s.db.WithContext(ctx).
		Model(&commissionModel{}).
		Where("referrer_account_id = ?", referrerAccountID.String()).
		Order("created_at")
	q = applyPage(q, opts.Offset, opts.Limit)

	var rows []commissionModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]*commission.Grant, 0, len(rows))
	for i := range rows {
		result = append(result, fromCommissionModel(&rows[i]))
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Store management
// ──────────────────────────────────────────────────

func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&accountModel{},
		&businessModel{},
		&offerModel{},
		&accrualModel{},
		&tokenModel{},
		&commissionModel{},
	)
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func applyPage(q *gorm.DB, offset, limit int) *gorm.DB {
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}
