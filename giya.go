package giya

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/giya-app/giya/account"
	"github.com/giya-app/giya/accrual"
	"github.com/giya-app/giya/business"
	"github.com/giya-app/giya/commission"
	"github.com/giya-app/giya/id"
	"github.com/giya-app/giya/offer"
	"github.com/giya-app/giya/plugin"
	"github.com/giya-app/giya/redemption"
	"github.com/giya-app/giya/store"
	"github.com/giya-app/giya/types"
)

// DefaultCommissionBps is the referral commission rate applied when none is
// configured: 10% of the points granted by the source accrual.
const DefaultCommissionBps = 1000

// ReferralResolver maps a customer account to its referrer. When configured,
// Accrue propagates a commission grant automatically after each accrual
// commits; without it commissions are granted explicitly via GrantCommission.
type ReferralResolver interface {
	// ReferrerOf returns the referrer of accountID, or ok=false when the
	// account was not referred by anyone.
	ReferrerOf(ctx context.Context, accountID id.AccountID) (id.AccountID, bool, error)
}

// Engine is the Giya loyalty points engine: accrual, redemption issuance,
// exactly-once token validation, and referral commission propagation, all on
// top of a transactional Store.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// Configuration
	commissionBps int64
	txRetries     int
	retryBackoff  time.Duration
	referrals     ReferralResolver
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		commissionBps: DefaultCommissionBps,
		txRetries:     3,
		retryBackoff:  25 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithCommissionRate sets the referral commission rate in basis points of
// the points granted by the source accrual.
func WithCommissionRate(bps int64) Option {
	return func(e *Engine) {
		e.commissionBps = bps
	}
}

// WithTxRetry configures how often a transaction is retried after a
// retryable failure and the initial backoff between attempts. The backoff
// doubles per attempt.
func WithTxRetry(retries int, backoff time.Duration) Option {
	return func(e *Engine) {
		e.txRetries = retries
		e.retryBackoff = backoff
	}
}

// WithReferralResolver wires a referral graph into the engine so that
// accruals automatically propagate commissions.
func WithReferralResolver(r ReferralResolver) Option {
	return func(e *Engine) {
		e.referrals = r
	}
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("giya started",
		"commission_bps", e.commissionBps,
		"tx_retries", e.txRetries,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Account Management
// ──────────────────────────────────────────────────

// CreateAccount creates a new points account with zero balance.
func (e *Engine) CreateAccount(ctx context.Context, a *account.Account) error {
	if a.ID == (id.AccountID{}) {
		a.ID = id.NewAccountID()
	}
	a.Entity = types.NewEntity()
	a.Balance = 0

	if err := e.store.CreateAccount(ctx, a); err != nil {
		return err
	}

	e.plugins.EmitAccountCreated(ctx, a)
	return nil
}

// GetAccount retrieves an account by ID.
func (e *Engine) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	return e.store.GetAccount(ctx, accountID)
}

// Balance returns the current points balance of an account.
func (e *Engine) Balance(ctx context.Context, accountID id.AccountID) (int64, error) {
	a, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

// ──────────────────────────────────────────────────
// Business Management
// ──────────────────────────────────────────────────

// CreateBusiness registers a merchant profile.
func (e *Engine) CreateBusiness(ctx context.Context, b *business.Business) error {
	if b.SpendPerPoint <= 0 {
		return ValidationError{Field: "spend_per_point", Message: "must be positive"}
	}
	if b.ID == (id.BusinessID{}) {
		b.ID = id.NewBusinessID()
	}
	b.Entity = types.NewEntity()

	return e.store.CreateBusiness(ctx, b)
}

// GetBusiness retrieves a business by ID.
func (e *Engine) GetBusiness(ctx context.Context, businessID id.BusinessID) (*business.Business, error) {
	return e.store.GetBusiness(ctx, businessID)
}

// ListBusinesses lists registered businesses.
func (e *Engine) ListBusinesses(ctx context.Context, opts business.ListOpts) ([]*business.Business, error) {
	return e.store.ListBusinesses(ctx, opts)
}

// UpdateBusiness updates a merchant profile.
func (e *Engine) UpdateBusiness(ctx context.Context, b *business.Business) error {
	if b.SpendPerPoint <= 0 {
		return ValidationError{Field: "spend_per_point", Message: "must be positive"}
	}
	return e.store.UpdateBusiness(ctx, b)
}

// ──────────────────────────────────────────────────
// Offer Management
// ──────────────────────────────────────────────────

// CreateOffer publishes a redeemable offer for an active business.
func (e *Engine) CreateOffer(ctx context.Context, o *offer.Offer) error {
	if o.PointsRequired <= 0 {
		return ValidationError{Field: "points_required", Message: "must be positive"}
	}
	if o.Kind == offer.KindDiscount && (o.DiscountPercent < 1 || o.DiscountPercent > 100) {
		return ValidationError{Field: "discount_percent", Message: "must be between 1 and 100"}
	}

	b, err := e.store.GetBusiness(ctx, o.BusinessID)
	if err != nil {
		return err
	}
	if !b.Active {
		return ErrBusinessInactive
	}

	if o.ID == (id.OfferID{}) {
		o.ID = id.NewOfferID()
	}
	o.Entity = types.NewEntity()
	o.RedemptionCount = 0

	if err := e.store.CreateOffer(ctx, o); err != nil {
		return err
	}

	e.plugins.EmitOfferCreated(ctx, o)
	return nil
}

// GetOffer retrieves an offer by ID.
func (e *Engine) GetOffer(ctx context.Context, offerID id.OfferID) (*offer.Offer, error) {
	return e.store.GetOffer(ctx, offerID)
}

// ListOffers lists a business's offers.
func (e *Engine) ListOffers(ctx context.Context, businessID id.BusinessID, opts offer.ListOpts) ([]*offer.Offer, error) {
	return e.store.ListOffers(ctx, businessID, opts)
}

// UpdateOffer updates an offer's descriptive fields and limits.
func (e *Engine) UpdateOffer(ctx context.Context, o *offer.Offer) error {
	return e.store.UpdateOffer(ctx, o)
}

// DeactivateOffer takes an offer down. Already issued tokens stay valid.
func (e *Engine) DeactivateOffer(ctx context.Context, offerID id.OfferID) error {
	if err := e.store.DeactivateOffer(ctx, offerID); err != nil {
		return err
	}

	e.plugins.EmitOfferDeactivated(ctx, offerID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Points Accrual
// ──────────────────────────────────────────────────

// AccrueInput describes one qualifying purchase.
type AccrueInput struct {
	AccountID   id.AccountID
	BusinessID  id.BusinessID
	AmountSpent types.Money
	// Ref is an optional idempotency key, typically the external payment
	// transaction id. Repeated calls with the same non-empty Ref return the
	// original record without granting points twice.
	Ref string
}

// Accrue converts a purchase into points at the business's configured rate,
// writes the accrual record, and credits the account, all in one
// transaction. Fractional points are truncated; a purchase below the rate
// still produces a zero-point record. A missing account is created on the
// fly, since accrual is the natural first touch point for a new customer.
func (e *Engine) Accrue(ctx context.Context, in AccrueInput) (*accrual.Record, error) {
	if in.AccountID.IsNil() {
		return nil, ValidationError{Field: "account_id", Message: "required"}
	}
	if in.BusinessID.IsNil() {
		return nil, ValidationError{Field: "business_id", Message: "required"}
	}
	if in.AmountSpent.Amount < 0 {
		return nil, ErrInvalidAmount
	}

	if in.Ref != "" {
		if existing, err := e.store.GetAccrualByRef(ctx, in.Ref); err == nil {
			return existing, nil
		}
	}

	record := &accrual.Record{
		ID:          id.NewAccrualID(),
		AccountID:   in.AccountID,
		BusinessID:  in.BusinessID,
		AmountSpent: in.AmountSpent,
		Ref:         in.Ref,
		CreatedAt:   time.Now().UTC(),
	}

	var accountCreated *account.Account
	err := e.inTx(ctx, func(ctx context.Context, tx store.Store) error {
		b, err := tx.GetBusiness(ctx, in.BusinessID)
		if err != nil {
			return err
		}
		if !b.Active {
			return ErrBusinessInactive
		}

		record.PointsGranted = in.AmountSpent.Amount / b.SpendPerPoint

		created, err := ensureAccount(ctx, tx, in.AccountID)
		if err != nil {
			return err
		}
		accountCreated = created

		if err := tx.AppendAccrual(ctx, record); err != nil {
			return err
		}
		if record.PointsGranted > 0 {
			if _, err := tx.AdjustBalance(ctx, in.AccountID, record.PointsGranted); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// A concurrent call with the same Ref won the insert race; its
		// record is the canonical one.
		if in.Ref != "" && errors.Is(err, ErrDuplicateRecord) {
			return e.store.GetAccrualByRef(ctx, in.Ref)
		}
		return nil, err
	}

	if accountCreated != nil {
		e.plugins.EmitAccountCreated(ctx, accountCreated)
	}
	e.plugins.EmitPointsGranted(ctx, record)

	if e.referrals != nil {
		if _, err := e.PropagateCommission(ctx, record.ID); err != nil {
			e.logger.Warn("commission propagation failed",
				"accrual_id", record.ID.String(),
				"error", err,
			)
		}
	}

	return record, nil
}

// GetAccrual retrieves an accrual record by ID.
func (e *Engine) GetAccrual(ctx context.Context, recordID id.AccrualID) (*accrual.Record, error) {
	return e.store.GetAccrual(ctx, recordID)
}

// ListAccruals lists an account's accrual history.
func (e *Engine) ListAccruals(ctx context.Context, accountID id.AccountID, opts accrual.ListOpts) ([]*accrual.Record, error) {
	return e.store.ListAccruals(ctx, accountID, opts)
}

// ──────────────────────────────────────────────────
// Redemption Issuance
// ──────────────────────────────────────────────────

// IssueRedemption debits the offer's point cost from the account and mints
// a single-use token, atomically. The debit happens at issue time; a token
// that is never validated still represents spent points until cancelled.
func (e *Engine) IssueRedemption(ctx context.Context, accountID id.AccountID, offerID id.OfferID) (*redemption.Token, error) {
	if accountID.IsNil() {
		return nil, ValidationError{Field: "account_id", Message: "required"}
	}

	token := &redemption.Token{
		ID:        id.NewRedemptionID(),
		Code:      redemption.NewCode(),
		AccountID: accountID,
		OfferID:   offerID,
		State:     redemption.StateIssued,
		IssuedAt:  time.Now().UTC(),
	}

	err := e.inTx(ctx, func(ctx context.Context, tx store.Store) error {
		o, err := tx.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		if !o.Active {
			return ErrOfferInactive
		}
		if !o.InWindow(token.IssuedAt) {
			return ErrOfferExpired
		}

		b, err := tx.GetBusiness(ctx, o.BusinessID)
		if err != nil {
			return err
		}
		if !b.Active {
			return ErrBusinessInactive
		}

		token.BusinessID = o.BusinessID
		token.PointsDebited = o.PointsRequired

		if err := tx.ReserveOfferSlot(ctx, offerID); err != nil {
			return err
		}
		if o.PointsRequired > 0 {
			if _, err := tx.AdjustBalance(ctx, accountID, -o.PointsRequired); err != nil {
				return err
			}
		}
		return tx.CreateToken(ctx, token)
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitRedemptionIssued(ctx, token)
	return token, nil
}

// ──────────────────────────────────────────────────
// Redemption Validation
// ──────────────────────────────────────────────────

// ValidateRedemption consumes a token presented to a business. Exactly one
// validation succeeds per token; concurrent attempts lose with
// ErrTokenAlreadyConsumed. The token must belong to the validating business.
func (e *Engine) ValidateRedemption(ctx context.Context, businessID id.BusinessID, code string, validatedBy string) (*redemption.Token, error) {
	if code == "" {
		return nil, ValidationError{Field: "code", Message: "required"}
	}

	var token *redemption.Token
	err := e.inTx(ctx, func(ctx context.Context, tx store.Store) error {
		t, err := tx.GetTokenByCode(ctx, code)
		if err != nil {
			return err
		}
		if t.BusinessID.String() != businessID.String() {
			return ErrTokenBusinessMismatch
		}

		at := time.Now().UTC()
		if err := tx.ConsumeToken(ctx, code, validatedBy, at); err != nil {
			return err
		}

		t.State = redemption.StateConsumed
		t.ConsumedAt = &at
		t.ConsumedBy = validatedBy
		token = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitRedemptionConsumed(ctx, token)
	return token, nil
}

// ──────────────────────────────────────────────────
// Redemption Cancellation
// ──────────────────────────────────────────────────

// CancelRedemption voids an issued token, refunds the debited points, and
// releases the offer slot. Consumed tokens cannot be cancelled.
func (e *Engine) CancelRedemption(ctx context.Context, tokenID id.RedemptionID) (*redemption.Token, error) {
	var token *redemption.Token
	err := e.inTx(ctx, func(ctx context.Context, tx store.Store) error {
		t, err := tx.GetToken(ctx, tokenID)
		if err != nil {
			return err
		}

		at := time.Now().UTC()
		if err := tx.CancelToken(ctx, tokenID, at); err != nil {
			return err
		}
		if t.PointsDebited > 0 {
			if _, err := tx.AdjustBalance(ctx, t.AccountID, t.PointsDebited); err != nil {
				return err
			}
		}
		if err := tx.ReleaseOfferSlot(ctx, t.OfferID); err != nil {
			return err
		}

		t.State = redemption.StateCancelled
		t.CancelledAt = &at
		token = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitRedemptionCancelled(ctx, token)
	return token, nil
}

// GetToken retrieves a redemption token by ID.
func (e *Engine) GetToken(ctx context.Context, tokenID id.RedemptionID) (*redemption.Token, error) {
	return e.store.GetToken(ctx, tokenID)
}

// ListTokens lists an account's redemption tokens.
func (e *Engine) ListTokens(ctx context.Context, accountID id.AccountID, opts redemption.ListOpts) ([]*redemption.Token, error) {
	return e.store.ListTokens(ctx, accountID, opts)
}

// ──────────────────────────────────────────────────
// Referral Commissions
// ──────────────────────────────────────────────────

// PropagateCommission grants the referrer of an accrual's account their
// commission. It requires a configured ReferralResolver; accounts without a
// referrer are a silent no-op. Safe to call any number of times per accrual.
func (e *Engine) PropagateCommission(ctx context.Context, sourceAccrualID id.AccrualID) (*commission.Grant, error) {
	if e.referrals == nil {
		return nil, nil
	}

	record, err := e.store.GetAccrual(ctx, sourceAccrualID)
	if err != nil {
		return nil, err
	}

	referrerID, ok, err := e.referrals.ReferrerOf(ctx, record.AccountID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	return e.GrantCommission(ctx, sourceAccrualID, referrerID)
}

// GrantCommission credits a referrer with their share of an accrual,
// idempotently: at most one grant ever exists per source accrual, and a
// repeat call returns the original grant.
func (e *Engine) GrantCommission(ctx context.Context, sourceAccrualID id.AccrualID, referrerAccountID id.AccountID) (*commission.Grant, error) {
	if referrerAccountID.IsNil() {
		return nil, ValidationError{Field: "referrer_account_id", Message: "required"}
	}

	if existing, err := e.store.GetCommissionBySource(ctx, sourceAccrualID); err == nil {
		return existing, nil
	}

	record, err := e.store.GetAccrual(ctx, sourceAccrualID)
	if err != nil {
		return nil, err
	}

	grant := &commission.Grant{
		ID:                id.NewCommissionID(),
		ReferrerAccountID: referrerAccountID,
		SourceAccrualID:   sourceAccrualID,
		Amount:            record.PointsGranted * e.commissionBps / 10000,
		CreatedAt:         time.Now().UTC(),
	}

	var accountCreated *account.Account
	err = e.inTx(ctx, func(ctx context.Context, tx store.Store) error {
		created, err := ensureAccount(ctx, tx, referrerAccountID)
		if err != nil {
			return err
		}
		accountCreated = created

		if err := tx.AppendCommission(ctx, grant); err != nil {
			return err
		}
		if grant.Amount > 0 {
			if _, err := tx.AdjustBalance(ctx, referrerAccountID, grant.Amount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// A concurrent propagation won the insert race.
		if errors.Is(err, ErrDuplicateRecord) {
			return e.store.GetCommissionBySource(ctx, sourceAccrualID)
		}
		return nil, err
	}

	if accountCreated != nil {
		e.plugins.EmitAccountCreated(ctx, accountCreated)
	}
	e.plugins.EmitCommissionGranted(ctx, grant)
	return grant, nil
}

// GetCommissionBySource retrieves the commission grant derived from an
// accrual, if one exists.
func (e *Engine) GetCommissionBySource(ctx context.Context, sourceAccrualID id.AccrualID) (*commission.Grant, error) {
	return e.store.GetCommissionBySource(ctx, sourceAccrualID)
}

// ListCommissions lists a referrer's commission grants.
func (e *Engine) ListCommissions(ctx context.Context, referrerAccountID id.AccountID, opts commission.ListOpts) ([]*commission.Grant, error) {
	return e.store.ListCommissions(ctx, referrerAccountID, opts)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// inTx runs fn in a store transaction, retrying retryable failures with a
// doubling backoff.
func (e *Engine) inTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	backoff := e.retryBackoff
	var err error
	for attempt := 0; ; attempt++ {
		err = e.store.WithTransaction(ctx, fn)
		if err == nil || !IsRetryable(err) || attempt >= e.txRetries {
			return err
		}

		e.logger.Debug("retrying transaction",
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// ensureAccount fetches an account, creating it with zero balance when it
// does not exist yet. Returns the account only when it was newly created.
func ensureAccount(ctx context.Context, tx store.Store, accountID id.AccountID) (*account.Account, error) {
	_, err := tx.GetAccount(ctx, accountID)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	a := &account.Account{
		Entity: types.NewEntity(),
		ID:     accountID,
	}
	if err := tx.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
