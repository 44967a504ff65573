// Package memory provides an in-memory Store implementation.
//
// It is intended for tests and demos. A single mutex serializes all
// operations, which trivially gives every WithTransaction closure
// serializable semantics; rollback is implemented by restoring a snapshot
// of the dataset taken when the transaction began.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

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

// compile-time interface checks
var (
	_ store.Store = (*Store)(nil)
	_ store.Store = (*txView)(nil)
)

// Store implements store.Store with plain maps guarded by one mutex.
type Store struct {
	mu sync.Mutex
	d  *dataset
}

// dataset holds all entity maps. Secondary indexes map to primary keys.
type dataset struct {
	accounts   map[string]*account.Account
	businesses map[string]*business.Business
	offers     map[string]*offer.Offer

	accruals     map[string]*accrual.Record
	accrualByRef map[string]string

	tokens      map[string]*redemption.Token
	tokenByCode map[string]string

	commissions        map[string]*commission.Grant
	commissionBySource map[string]string
}

func newDataset() *dataset {
	return &dataset{
		accounts:           make(map[string]*account.Account),
		businesses:         make(map[string]*business.Business),
		offers:             make(map[string]*offer.Offer),
		accruals:           make(map[string]*accrual.Record),
		accrualByRef:       make(map[string]string),
		tokens:             make(map[string]*redemption.Token),
		tokenByCode:        make(map[string]string),
		commissions:        make(map[string]*commission.Grant),
		commissionBySource: make(map[string]string),
	}
}

func New() *Store {
	return &Store{d: newDataset()}
}

// ──────────────────────────────────────────────────
// Transaction support
// ──────────────────────────────────────────────────

// WithTransaction holds the store lock for the duration of fn and restores
// a pre-transaction snapshot if fn fails, so partial mutations never leak.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	if err := fn(ctx, &txView{d: s.d}); err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

// txView exposes the dataset of an in-flight transaction. It must only be
// used while the owning Store's mutex is held.
type txView struct {
	d *dataset
}

// WithTransaction on a txView joins the enclosing transaction.
func (v *txView) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return fn(ctx, v)
}

// ──────────────────────────────────────────────────
// Account methods
// ──────────────────────────────────────────────────

func (s *Store) CreateAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.createAccount(a)
}

func (v *txView) CreateAccount(_ context.Context, a *account.Account) error {
	return v.d.createAccount(a)
}

func (s *Store) GetAccount(_ context.Context, accountID id.AccountID) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getAccount(accountID)
}

func (v *txView) GetAccount(_ context.Context, accountID id.AccountID) (*account.Account, error) {
	return v.d.getAccount(accountID)
}

func (s *Store) AdjustBalance(_ context.Context, accountID id.AccountID, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.adjustBalance(accountID, delta)
}

func (v *txView) AdjustBalance(_ context.Context, accountID id.AccountID, delta int64) (int64, error) {
	return v.d.adjustBalance(accountID, delta)
}

func (d *dataset) createAccount(a *account.Account) error {
	if _, exists := d.accounts[a.ID.String()]; exists {
		return giya.ErrAlreadyExists
	}
	d.accounts[a.ID.String()] = cloneAccount(a)
	return nil
}

func (d *dataset) getAccount(accountID id.AccountID) (*account.Account, error) {
	if a, ok := d.accounts[accountID.String()]; ok {
		return cloneAccount(a), nil
	}
	return nil, giya.ErrAccountNotFound
}

func (d *dataset) adjustBalance(accountID id.AccountID, delta int64) (int64, error) {
	a, ok := d.accounts[accountID.String()]
	if !ok {
		return 0, giya.ErrAccountNotFound
	}
	if a.Balance+delta < 0 {
		return 0, giya.ErrInsufficientBalance
	}
	a.Balance += delta
	a.Touch()
	return a.Balance, nil
}

// ──────────────────────────────────────────────────
// Business methods
// ──────────────────────────────────────────────────

func (s *Store) CreateBusiness(_ context.Context, b *business.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.createBusiness(b)
}

func (v *txView) CreateBusiness(_ context.Context, b *business.Business) error {
	return v.d.createBusiness(b)
}

func (s *Store) GetBusiness(_ context.Context, businessID id.BusinessID) (*business.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getBusiness(businessID)
}

func (v *txView) GetBusiness(_ context.Context, businessID id.BusinessID) (*business.Business, error) {
	return v.d.getBusiness(businessID)
}

func (s *Store) ListBusinesses(_ context.Context, opts business.ListOpts) ([]*business.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.listBusinesses(opts)
}

func (v *txView) ListBusinesses(_ context.Context, opts business.ListOpts) ([]*business.Business, error) {
	return v.d.listBusinesses(opts)
}

func (s *Store) UpdateBusiness(_ context.Context, b *business.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.updateBusiness(b)
}

func (v *txView) UpdateBusiness(_ context.Context, b *business.Business) error {
	return v.d.updateBusiness(b)
}

func (d *dataset) createBusiness(b *business.Business) error {
	if _, exists := d.businesses[b.ID.String()]; exists {
		return giya.ErrAlreadyExists
	}
	d.businesses[b.ID.String()] = cloneBusiness(b)
	return nil
}

func (d *dataset) getBusiness(businessID id.BusinessID) (*business.Business, error) {
	if b, ok := d.businesses[businessID.String()]; ok {
		return cloneBusiness(b), nil
	}
	return nil, giya.ErrBusinessNotFound
}

func (d *dataset) listBusinesses(opts business.ListOpts) ([]*business.Business, error) {
	result := make([]*business.Business, 0)
	for _, b := range d.businesses {
		if opts.ActiveOnly && !b.Active {
			continue
		}
		result = append(result, cloneBusiness(b))
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (d *dataset) updateBusiness(b *business.Business) error {
	if _, exists := d.businesses[b.ID.String()]; !exists {
		return giya.ErrBusinessNotFound
	}
	d.businesses[b.ID.String()] = cloneBusiness(b)
	return nil
}

// ──────────────────────────────────────────────────
// Offer methods
// ──────────────────────────────────────────────────

func (s *Store) CreateOffer(_ context.Context, o *offer.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.createOffer(o)
}

func (v *txView) CreateOffer(_ context.Context, o *offer.Offer) error {
	return v.d.createOffer(o)
}

func (s *Store) GetOffer(_ context.Context, offerID id.OfferID) (*offer.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getOffer(offerID)
}

func (v *txView) GetOffer(_ context.Context, offerID id.OfferID) (*offer.Offer, error) {
	return v.d.getOffer(offerID)
}

func (s *Store) ListOffers(_ context.Context, businessID id.BusinessID, opts offer.ListOpts) ([]*offer.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.listOffers(businessID, opts)
}

func (v *txView) ListOffers(_ context.Context, businessID id.BusinessID, opts offer.ListOpts) ([]*offer.Offer, error) {
	return v.d.listOffers(businessID, opts)
}

func (s *Store) UpdateOffer(_ context.Context, o *offer.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.updateOffer(o)
}

func (v *txView) UpdateOffer(_ context.Context, o *offer.Offer) error {
	return v.d.updateOffer(o)
}

func (s *Store) DeactivateOffer(_ context.Context, offerID id.OfferID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.deactivateOffer(offerID)
}

func (v *txView) DeactivateOffer(_ context.Context, offerID id.OfferID) error {
	return v.d.deactivateOffer(offerID)
}

func (s *Store) ReserveOfferSlot(_ context.Context, offerID id.OfferID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.reserveOfferSlot(offerID)
}

func (v *txView) ReserveOfferSlot(_ context.Context, offerID id.OfferID) error {
	return v.d.reserveOfferSlot(offerID)
}

func (s *Store) ReleaseOfferSlot(_ context.Context, offerID id.OfferID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.releaseOfferSlot(offerID)
}

func (v *txView) ReleaseOfferSlot(_ context.Context, offerID id.OfferID) error {
	return v.d.releaseOfferSlot(offerID)
}

func (d *dataset) createOffer(o *offer.Offer) error {
	if _, exists := d.offers[o.ID.String()]; exists {
		return giya.ErrAlreadyExists
	}
	d.offers[o.ID.String()] = cloneOffer(o)
	return nil
}

func (d *dataset) getOffer(offerID id.OfferID) (*offer.Offer, error) {
	if o, ok := d.offers[offerID.String()]; ok {
		return cloneOffer(o), nil
	}
	return nil, giya.ErrOfferNotFound
}

func (d *dataset) listOffers(businessID id.BusinessID, opts offer.ListOpts) ([]*offer.Offer, error) {
	result := make([]*offer.Offer, 0)
	for _, o := range d.offers {
		if o.BusinessID.String() != businessID.String() {
			continue
		}
		if opts.Kind != "" && o.Kind != opts.Kind {
			continue
		}
		if opts.ActiveOnly && !o.Active {
			continue
		}
		result = append(result, cloneOffer(o))
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (d *dataset) updateOffer(o *offer.Offer) error {
	if _, exists := d.offers[o.ID.String()]; !exists {
		return giya.ErrOfferNotFound
	}
	d.offers[o.ID.String()] = cloneOffer(o)
	return nil
}

func (d *dataset) deactivateOffer(offerID id.OfferID) error {
	o, ok := d.offers[offerID.String()]
	if !ok {
		return giya.ErrOfferNotFound
	}
	o.Active = false
	o.Touch()
	return nil
}

func (d *dataset) reserveOfferSlot(offerID id.OfferID) error {
	o, ok := d.offers[offerID.String()]
	if !ok {
		return giya.ErrOfferNotFound
	}
	// Mirrors the SQL conditional update: active and under the limit, or
	// zero rows affected.
	if !o.Active || (o.RedemptionLimit > 0 && o.RedemptionCount >= o.RedemptionLimit) {
		return giya.ErrOfferExhausted
	}
	o.RedemptionCount++
	o.Touch()
	return nil
}

func (d *dataset) releaseOfferSlot(offerID id.OfferID) error {
	o, ok := d.offers[offerID.String()]
	if !ok {
		return giya.ErrOfferNotFound
	}
	if o.RedemptionCount > 0 {
		o.RedemptionCount--
		o.Touch()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Accrual methods
// ──────────────────────────────────────────────────

func (s *Store) AppendAccrual(_ context.Context, r *accrual.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.appendAccrual(r)
}

func (v *txView) AppendAccrual(_ context.Context, r *accrual.Record) error {
	return v.d.appendAccrual(r)
}

func (s *Store) GetAccrual(_ context.Context, recordID id.AccrualID) (*accrual.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getAccrual(recordID)
}

func (v *txView) GetAccrual(_ context.Context, recordID id.AccrualID) (*accrual.Record, error) {
	return v.d.getAccrual(recordID)
}

func (s *Store) GetAccrualByRef(_ context.Context, ref string) (*accrual.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getAccrualByRef(ref)
}

func (v *txView) GetAccrualByRef(_ context.Context, ref string) (*accrual.Record, error) {
	return v.d.getAccrualByRef(ref)
}

func (s *Store) ListAccruals(_ context.Context, accountID id.AccountID, opts accrual.ListOpts) ([]*accrual.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.listAccruals(accountID, opts)
}

func (v *txView) ListAccruals(_ context.Context, accountID id.AccountID, opts accrual.ListOpts) ([]*accrual.Record, error) {
	return v.d.listAccruals(accountID, opts)
}

func (d *dataset) appendAccrual(r *accrual.Record) error {
	if _, exists := d.accruals[r.ID.String()]; exists {
		return giya.ErrAlreadyExists
	}
	if r.Ref != "" {
		if _, exists := d.accrualByRef[r.Ref]; exists {
			return giya.ErrDuplicateRecord
		}
		d.accrualByRef[r.Ref] = r.ID.String()
	}
	cp := *r
	d.accruals[r.ID.String()] = &cp
	return nil
}

func (d *dataset) getAccrual(recordID id.AccrualID) (*accrual.Record, error) {
	if r, ok := d.accruals[recordID.String()]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, giya.ErrNotFound
}

func (d *dataset) getAccrualByRef(ref string) (*accrual.Record, error) {
	if key, ok := d.accrualByRef[ref]; ok {
		return d.getAccrual(id.MustParse(key))
	}
	return nil, giya.ErrNotFound
}

func (d *dataset) listAccruals(accountID id.AccountID, opts accrual.ListOpts) ([]*accrual.Record, error) {
	result := make([]*accrual.Record, 0)
	for _, r := range d.accruals {
		if r.AccountID.String() != accountID.String() {
			continue
		}
		if !opts.BusinessID.IsNil() && r.BusinessID.String() != opts.BusinessID.String() {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Redemption token methods
// ──────────────────────────────────────────────────

func (s *Store) CreateToken(_ context.Context, t *redemption.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.createToken(t)
}

func (v *txView) CreateToken(_ context.Context, t *redemption.Token) error {
	return v.d.createToken(t)
}

func (s *Store) GetToken(_ context.Context, tokenID id.RedemptionID) (*redemption.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getToken(tokenID)
}

func (v *txView) GetToken(_ context.Context, tokenID id.RedemptionID) (*redemption.Token, error) {
	return v.d.getToken(tokenID)
}

func (s *Store) GetTokenByCode(_ context.Context, code string) (*redemption.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getTokenByCode(code)
}

func (v *txView) GetTokenByCode(_ context.Context, code string) (*redemption.Token, error) {
	return v.d.getTokenByCode(code)
}

func (s *Store) ListTokens(_ context.Context, accountID id.AccountID, opts redemption.ListOpts) ([]*redemption.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.listTokens(accountID, opts)
}

func (v *txView) ListTokens(_ context.Context, accountID id.AccountID, opts redemption.ListOpts) ([]*redemption.Token, error) {
	return v.d.listTokens(accountID, opts)
}

func (s *Store) ConsumeToken(_ context.Context, code string, consumedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.consumeToken(code, consumedBy, at)
}

func (v *txView) ConsumeToken(_ context.Context, code string, consumedBy string, at time.Time) error {
	return v.d.consumeToken(code, consumedBy, at)
}

func (s *Store) CancelToken(_ context.Context, tokenID id.RedemptionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.cancelToken(tokenID, at)
}

func (v *txView) CancelToken(_ context.Context, tokenID id.RedemptionID, at time.Time) error {
	return v.d.cancelToken(tokenID, at)
}

func (d *dataset) createToken(t *redemption.Token) error {
	if _, exists := d.tokens[t.ID.String()]; exists {
		return giya.ErrAlreadyExists
	}
	if _, exists := d.tokenByCode[t.Code]; exists {
		return giya.ErrAlreadyExists
	}
	d.tokens[t.ID.String()] = cloneToken(t)
	d.tokenByCode[t.Code] = t.ID.String()
	return nil
}

func (d *dataset) getToken(tokenID id.RedemptionID) (*redemption.Token, error) {
	if t, ok := d.tokens[tokenID.String()]; ok {
		return cloneToken(t), nil
	}
	return nil, giya.ErrTokenNotFound
}

func (d *dataset) getTokenByCode(code string) (*redemption.Token, error) {
	if key, ok := d.tokenByCode[code]; ok {
		return d.getToken(id.MustParse(key))
	}
	return nil, giya.ErrTokenNotFound
}

func (d *dataset) listTokens(accountID id.AccountID, opts redemption.ListOpts) ([]*redemption.Token, error) {
	result := make([]*redemption.Token, 0)
	for _, t := range d.tokens {
		if t.AccountID.String() != accountID.String() {
			continue
		}
		if opts.State != "" && t.State != opts.State {
			continue
		}
		result = append(result, cloneToken(t))
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (d *dataset) consumeToken(code string, consumedBy string, at time.Time) error {
	key, ok := d.tokenByCode[code]
	if !ok {
		return giya.ErrTokenNotFound
	}
	t := d.tokens[key]
	switch t.State {
	case redemption.StateConsumed:
		return giya.ErrTokenAlreadyConsumed
	case redemption.StateCancelled:
		return giya.ErrTokenCancelled
	}
	t.State = redemption.StateConsumed
	t.ConsumedAt = &at
	t.ConsumedBy = consumedBy
	return nil
}

func (d *dataset) cancelToken(tokenID id.RedemptionID, at time.Time) error {
	t, ok := d.tokens[tokenID.String()]
	if !ok {
		return giya.ErrTokenNotFound
	}
	switch t.State {
	case redemption.StateConsumed:
		return giya.ErrTokenAlreadyConsumed
	case redemption.StateCancelled:
		return giya.ErrTokenCancelled
	}
	t.State = redemption.StateCancelled
	t.CancelledAt = &at
	return nil
}

// ──────────────────────────────────────────────────
// Commission methods
// ──────────────────────────────────────────────────

func (s *Store) AppendCommission(_ context.Context, g *commission.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.appendCommission(g)
}

func (v *txView) AppendCommission(_ context.Context, g *commission.Grant) error {
	return v.d.appendCommission(g)
}

func (s *Store) GetCommissionBySource(_ context.Context, sourceAccrualID id.AccrualID) (*commission.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getCommissionBySource(sourceAccrualID)
}

func (v *txView) GetCommissionBySource(_ context.Context, sourceAccrualID id.AccrualID) (*commission.Grant, error) {
	return v.d.getCommissionBySource(sourceAccrualID)
}

func (s *Store) ListCommissions(_ context.Context, referrerAccountID id.AccountID, opts commission.ListOpts) ([]*commission.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.listCommissions(referrerAccountID, opts)
}

func (v *txView) ListCommissions(_ context.Context, referrerAccountID id.AccountID, opts commission.ListOpts) ([]*commission.Grant, error) {
	return v.d.listCommissions(referrerAccountID, opts)
}

func (d *dataset) appendCommission(g *commission.Grant) error {
	if _, exists := d.commissionBySource[g.SourceAccrualID.String()]; exists {
		return giya.ErrDuplicateRecord
	}
	cp := *g
	d.commissions[g.ID.String()] = &cp
	d.commissionBySource[g.SourceAccrualID.String()] = g.ID.String()
	return nil
}

func (d *dataset) getCommissionBySource(sourceAccrualID id.AccrualID) (*commission.Grant, error) {
	key, ok := d.commissionBySource[sourceAccrualID.String()]
	if !ok {
		return nil, giya.ErrCommissionNotFound
	}
	cp := *d.commissions[key]
	return &cp, nil
}

func (d *dataset) listCommissions(referrerAccountID id.AccountID, opts commission.ListOpts) ([]*commission.Grant, error) {
	result := make([]*commission.Grant, 0)
	for _, g := range d.commissions {
		if g.ReferrerAccountID.String() != referrerAccountID.String() {
			continue
		}
		cp := *g
		result = append(result, &cp)
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Store management
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error { return nil }
func (s *Store) Ping(_ context.Context) error    { return nil }
func (s *Store) Close() error                    { return nil }

func (v *txView) Migrate(_ context.Context) error { return nil }
func (v *txView) Ping(_ context.Context) error    { return nil }
func (v *txView) Close() error                    { return nil }

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (d *dataset) clone() *dataset {
	out := newDataset()
	for k, a := range d.accounts {
		out.accounts[k] = cloneAccount(a)
	}
	for k, b := range d.businesses {
		out.businesses[k] = cloneBusiness(b)
	}
	for k, o := range d.offers {
		out.offers[k] = cloneOffer(o)
	}
	for k, r := range d.accruals {
		cp := *r
		out.accruals[k] = &cp
	}
	out.accrualByRef = maps.Clone(d.accrualByRef)
	for k, t := range d.tokens {
		out.tokens[k] = cloneToken(t)
	}
	out.tokenByCode = maps.Clone(d.tokenByCode)
	for k, g := range d.commissions {
		cp := *g
		out.commissions[k] = &cp
	}
	out.commissionBySource = maps.Clone(d.commissionBySource)
	return out
}

func cloneAccount(a *account.Account) *account.Account {
	cp := *a
	return &cp
}

func cloneBusiness(b *business.Business) *business.Business {
	cp := *b
	return &cp
}

func cloneOffer(o *offer.Offer) *offer.Offer {
	cp := *o
	if o.ValidFrom != nil {
		t := *o.ValidFrom
		cp.ValidFrom = &t
	}
	if o.ValidUntil != nil {
		t := *o.ValidUntil
		cp.ValidUntil = &t
	}
	if o.Metadata != nil {
		cp.Metadata = maps.Clone(o.Metadata)
	}
	return &cp
}

func cloneToken(t *redemption.Token) *redemption.Token {
	cp := *t
	if t.ConsumedAt != nil {
		at := *t.ConsumedAt
		cp.ConsumedAt = &at
	}
	if t.CancelledAt != nil {
		at := *t.CancelledAt
		cp.CancelledAt = &at
	}
	return &cp
}

// paginate applies offset/limit the way the SQL stores do.
func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
