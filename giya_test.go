package giya_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	giya "github.com/giya-app/giya"
	"github.com/giya-app/giya/accrual"
	"github.com/giya-app/giya/business"
	"github.com/giya-app/giya/id"
	"github.com/giya-app/giya/offer"
	"github.com/giya-app/giya/redemption"
	"github.com/giya-app/giya/store/memory"
	"github.com/giya-app/giya/types"
)

func newTestEngine(t *testing.T, opts ...giya.Option) *giya.Engine {
	t.Helper()

	opts = append([]giya.Option{
		giya.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)

	g := giya.New(memory.New(), opts...)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = g.Stop() })
	return g
}

// newTestBusiness registers an active business granting one point per
// ₱100.00 spent.
func newTestBusiness(t *testing.T, g *giya.Engine) *business.Business {
	t.Helper()

	b := &business.Business{
		Name:          "Aling Nena's Carinderia",
		SpendPerPoint: 10000,
		Active:        true,
	}
	if err := g.CreateBusiness(context.Background(), b); err != nil {
		t.Fatalf("create business: %v", err)
	}
	return b
}

func newTestOffer(t *testing.T, g *giya.Engine, b *business.Business, points int64, limit int64) *offer.Offer {
	t.Helper()

	o := &offer.Offer{
		BusinessID:      b.ID,
		Kind:            offer.KindReward,
		Name:            "Free halo-halo",
		PointsRequired:  points,
		Active:          true,
		RedemptionLimit: limit,
	}
	if err := g.CreateOffer(context.Background(), o); err != nil {
		t.Fatalf("create offer: %v", err)
	}
	return o
}

// fundAccount accrues enough spend to give the account the requested points.
func fundAccount(t *testing.T, g *giya.Engine, b *business.Business, accountID id.AccountID, points int64) {
	t.Helper()

	_, err := g.Accrue(context.Background(), giya.AccrueInput{
		AccountID:   accountID,
		BusinessID:  b.ID,
		AmountSpent: types.PHP(points * b.SpendPerPoint),
	})
	if err != nil {
		t.Fatalf("fund account: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Accrual
// ──────────────────────────────────────────────────

func TestAccrueConversion(t *testing.T) {
	tests := []struct {
		name       string
		spent      int64
		wantPoints int64
	}{
		{"fractional points truncate", 25000, 2},
		{"below rate grants zero", 9900, 0},
		{"exact rate", 10000, 1},
		{"zero spend", 0, 0},
		{"just under next point", 19999, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestEngine(t)
			b := newTestBusiness(t, g)
			accountID := id.NewAccountID()

			record, err := g.Accrue(context.Background(), giya.AccrueInput{
				AccountID:   accountID,
				BusinessID:  b.ID,
				AmountSpent: types.PHP(tt.spent),
			})
			if err != nil {
				t.Fatalf("accrue: %v", err)
			}
			if record.PointsGranted != tt.wantPoints {
				t.Errorf("points granted: got %d, want %d", record.PointsGranted, tt.wantPoints)
			}

			balance, err := g.Balance(context.Background(), accountID)
			if err != nil {
				t.Fatalf("balance: %v", err)
			}
			if balance != tt.wantPoints {
				t.Errorf("balance: got %d, want %d", balance, tt.wantPoints)
			}
		})
	}
}

func TestAccrueZeroPointRecordPersisted(t *testing.T) {
	g := newTestEngine(t)
	b := newTestBusiness(t, g)
	accountID := id.NewAccountID()

	record, err := g.Accrue(context.Background(), giya.AccrueInput{
		AccountID:   accountID,
		BusinessID:  b.ID,
		AmountSpent: types.PHP(500),
	})
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}

	records, err := g.ListAccruals(context.Background(), accountID, accrual.ListOpts{})
	if err != nil {
		t.Fatalf("list accruals: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ID.String() != record.ID.String() {
		t.Errorf("record id mismatch")
	}
	if records[0].PointsGranted != 0 {
		t.Errorf("expected zero points, got %d", records[0].PointsGranted)
	}
}

func TestAccrueIdempotentRef(t *testing.T) {
	g := newTestEngine(t)
	b := newTestBusiness(t, g)
	accountID := id.NewAccountID()

	in := giya.AccrueInput{
		AccountID:   accountID,
		BusinessID:  b.ID,
		AmountSpent: types.PHP(25000),
		Ref:         "gcash-txn-8841",
	}

	first, err := g.Accrue(context.Background(), in)
	if err != nil {
		t.Fatalf("first accrue: %v", err)
	}
	second, err := g.Accrue(context.Background(), in)
	if err != nil {
		t.Fatalf("second accrue: %v", err)
	}

	if first.ID.String() != second.ID.String() {
		t.Errorf("expected same record: %s != %s", first.ID, second.ID)
	}

	balance, _ := g.Balance(context.Background(), accountID)
	if balance != 2 {
		t.Errorf("points granted twice: balance %d, want 2", balance)
	}
}

func TestAccrueErrors(t *testing.T) {
	g := newTestEngine(t)
	b := newTestBusiness(t, g)

	inactive := &business.Business{Name: "Closed Shop", SpendPerPoint: 10000, Active: false}
	if err := g.CreateBusiness(context.Background(), inactive); err != nil {
		t.Fatalf("create business: %v", err)
	}

	tests := []struct {
		name    string
		in      giya.AccrueInput
		wantErr error
	}{
		{
			"negative amount",
			giya.AccrueInput{AccountID: id.NewAccountID(), BusinessID: b.ID, AmountSpent: types.PHP(-100)},
			giya.ErrInvalidAmount,
		},
		{
			"unknown business",
			giya.AccrueInput{AccountID: id.NewAccountID(), BusinessID: id.NewBusinessID(), AmountSpent: types.PHP(100)},
			giya.ErrBusinessNotFound,
		},
		{
			"inactive business",
			giya.AccrueInput{AccountID: id.NewAccountID(), BusinessID: inactive.ID, AmountSpent: types.PHP(100)},
			giya.ErrBusinessInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Accrue(context.Background(), tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAccrueCreatesAccount(t *testing.T) {
	g := newTestEngine(t)
	b := newTestBusiness(t, g)
	accountID := id.NewAccountID()

	if _, err := g.GetAccount(context.Background(), accountID); !errors.Is(err, giya.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}

	if _, err := g.Accrue(context.Background(), giya.AccrueInput{
		AccountID:   accountID,
		BusinessID:  b.ID,
		AmountSpent: types.PHP(10000),
	}); err != nil {
		t.Fatalf("accrue: %v", err)
	}

	a, err := g.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if a.Balance != 1 {
		t.Errorf("balance: got %d, want 1", a.Balance)
	}
}

// ──────────────────────────────────────────────────
// Redemption issuance
// ──────────────────────────────────────────────────

func TestCreateOfferValidation(t *testing.T) {
	g := newTestEngine(t)
	b := newTestBusiness(t, g)
	ctx := context.Background()

	tests := []struct {
		name   string
		points int64
	}{
		{"zero points", 0},
		{"negative points", -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &offer.Offer{
				BusinessID:     b.ID,
				Kind:           offer.KindReward,
				Name:           "invalid offer",
				PointsRequired: tt.points,
				Active:         true,
			}
			err := g.CreateOffer(ctx, o)
			var ve giya.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got %v, want ValidationError", err)
			}
			if ve.Field != "points_required" {
				t.Errorf("field: got %q, want points_required", ve.Field)
			}
		})
	}
}

func TestIssueRedemption(t *testing.T) {
	g := newTestEngine(t)
	b := newTestBusiness(t, g)
	o := newTestOffer(t, g, b, 5, 0)
	accountID := id.NewAccountID()
	fundAccount(t, g, b, accountID, 8)

	token, err := g.IssueRedemption(context.Background(), accountID, o.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if token.State != redemption.StateIssued {
		t.Errorf("state: got %s, want issued", token.State)
	}
	if token.PointsDebited != 5 {
		t.Errorf("points debited: got %d, want 5", token.PointsDebited)
	}
	if !strings.HasPrefix(token.Code, "GY-") {
		t.Errorf("code format: %q", token.Code)
	}

	balance, _ := g.Balance(context.Background(), accountID)
	if balance != 3 {
		t.Errorf("balance after debit: got %d, want 3", balance)
	}

	got, err := g.GetOffer(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if got.RedemptionCount != 1 {
		t.Errorf("redemption count: got %d, want 1", got.RedemptionCount)
	}
}

func TestIssueRedemptionInsufficientBalance(t *testing.T) {
	g := newTestEngine(t)
	b := newTestBusiness(t, g)
	o := newTestOffer(t, g, b, 5, 0)
	accountID := id.NewAccountID()
	fundAccount(t, g, b, accountID, 3)

	_, err := g.IssueRedemption(context.Background(), accountID, o.ID)
	if !errors.Is(err, giya.ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}

	// The failed issuance must leave no trace: balance intact, no slot
	// reserved.
	balance, _ := g.Balance(context.Background(), accountID)
	if balance != 3 {
		t.Errorf("balance: got %d, want 3", balance)
	}
	got, _ := g.GetOffer(context.Background(), o.ID)
	if got.RedemptionCount != 0 {
		t.Errorf("slot leaked: redemption count %d", got.RedemptionCount)
	}
}

func TestIssueRedemptionOfferUnavailable(t *testing.T) {
	g := newTestEngine(t)
	b := newTestBusiness(t, g)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired := newTestOffer(t, g, b, 1, 0)
	expired.ValidUntil = &past
	if err := g.UpdateOffer(ctx, expired); err != nil {
		t.Fatalf("update offer: %v", err)
	}

	notYet := newTestOffer(t, g, b, 1, 0)
	notYet.ValidFrom = &future
	if err := g.UpdateOffer(ctx, notYet); err != nil {
		t.Fatalf("update offer: %v", err)
	}

	inactive := newTestOffer(t, g, b, 1, 0)
	if err := g.DeactivateOffer(ctx, inactive.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	accountID := id.NewAccountID()
	fundAccount(t, g, b, accountID, 10)

	tests := []struct {
		name    string
		offerID id.OfferID
		wantErr error
	}{
		{"expired window", expired.ID, giya.ErrOfferExpired},
		{"not yet valid", notYet.ID, giya.ErrOfferExpired},
		{"deactivated", inactive.ID, giya.ErrOfferInactive},
		{"unknown offer", id.NewOfferID(), giya.ErrOfferNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.IssueRedemption(ctx, accountID, tt.offerID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConcurrentIssuanceRespectsLimit(t *testing.T) {
	g := newTestEngine(t)
	b := newTestBusiness(t, g)
	o := newTestOffer(t, g, b, 1, 3)
	ctx := context.Background()

	const issuers = 10
	accounts := make([]id.AccountID, issuers)
	for i := range accounts {
		accounts[i] = id.NewAccountID()
		fundAccount(t, g, b, accounts[i], 1)
	}

	var wg sync.WaitGroup
	results := make(chan error, issuers)
	for i := 0; i < issuers; i++ {
		wg.Add(1)
		go func(accountID id.AccountID) {
			defer wg.Done()
			_, err := g.IssueRedemption(ctx, accountID, o.ID)
			results <- err
		}(accounts[i])
	}
	wg.Wait()
	close(results)

	var issued, exhausted int
	for err := range results {
		switch {
		case err == nil:
			issued++
		case errors.Is(err, giya.ErrOfferExhausted):
			exhausted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if issued != 3 {
		t.Errorf("issued: got %d, want 3", issued)
	}
	if exhausted != issuers-3 {
		t.Errorf("exhausted: got %d, want %d", exhausted, issuers-3)
	}
}

// ──────────────────────────────────────────────────
// Redemption validation
// ──────────────────────────────────────────────────

func TestValidateRedemption(t *testing.T) {
	g := newTestEngine(t)
	b := newTestBusiness(t, g)
	o := newTestOffer(t, g, b, 2, 0)
	ctx := context.Background()
	accountID := id.NewAccountID()
	fundAccount(t, g, b, accountID, 2)

	token, err := g.IssueRedemption(ctx, accountID, o.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	validated, err := g.ValidateRedemption(ctx, b.ID, token.Code, "staff-01")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validated.State != redemption.StateConsumed {
		t.Errorf("state: got %s, want consumed", validated.State)
	}
	if validated.ConsumedBy != "staff-01" {
		t.Errorf("consumed by: got %q", validated.ConsumedBy)
	}
	if validated.ConsumedAt == nil {
		t.Error("consumed at not set")
	}

	// Validation does not touch the balance; points were spent at issuance.
	balance, _ := g.Balance(ctx, accountID)
	if balance != 0 {
		t.Errorf("balance: got %d, want 0", balance)
	}

	if _, err := g.ValidateRedemption(ctx, b.ID, token.Code, "staff-02"); !errors.Is(err, giya.ErrTokenAlreadyConsumed) {
		t.Errorf("second validation: got %v, want ErrTokenAlreadyConsumed", err)
	}
}

func TestValidateRedemptionErrors(t *testing.T) {
	g := newTestEngine(t)
	b := newTestBusiness(t, g)
	other := newTestBusiness(t, g)
	o := newTestOffer(t, g, b, 1, 0)
	ctx := context.Background()
	accountID := id.NewAccountID()
	fundAccount(t, g, b, accountID, 2)

	token, err := g.IssueRedemption(ctx, accountID, o.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := g.ValidateRedemption(ctx, other.ID, token.Code, "staff"); !errors.Is(err, giya.ErrTokenBusinessMismatch) {
		t.Errorf("wrong business: got %v, want ErrTokenBusinessMismatch", err)
	}
	if _, err := g.ValidateRedemption(ctx, b.ID, "GY-NOSUCHCODE", "staff"); !errors.Is(err, giya.ErrTokenNotFound) {
		t.Errorf("unknown code: got %v, want ErrTokenNotFound", err)
	}

	// The mismatch attempt must not have consumed the token.
	got, _ := g.GetToken(ctx, token.ID)
	if got.State != redemption.StateIssued {
		t.Errorf("state after mismatch: got %s, want issued", got.State)
	}
}

func TestValidateRedemptionExactlyOnce(t *testing.T) {
	g := newTestEngine(t)
	b := newTestBusiness(t, g)
	o := newTestOffer(t, g, b, 1, 0)
	ctx := context.Background()
	accountID := id.NewAccountID()
	fundAccount(t, g, b, accountID, 1)

	token, err := g.IssueRedemption(ctx, accountID, o.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.ValidateRedemption(ctx, b.ID, token.Code, "staff")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, giya.ErrTokenAlreadyConsumed):
			losses++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("winners: got %d, want exactly 1", wins)
	}
	if losses != attempts-1 {
		t.Errorf("losses: got %d, want %d", losses, attempts-1)
	}
}

// ──────────────────────────────────────────────────
// Redemption cancellation
// ──────────────────────────────────────────────────

func TestCancelRedemption(t *testing.T) {
	g := newTestEngine(t)
	b := newTestBusiness(t, g)
	o := newTestOffer(t, g, b, 5, 1)
	ctx := context.Background()
	accountID := id.NewAccountID()
	fundAccount(t, g, b, accountID, 5)

	token, err := g.IssueRedemption(ctx, accountID, o.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cancelled, err := g.CancelRedemption(ctx, token.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.State != redemption.StateCancelled {
		t.Errorf("state: got %s, want cancelled", cancelled.State)
	}

	// Points refunded, slot released.
	balance, _ := g.Balance(ctx, accountID)
	if balance != 5 {
		t.Errorf("balance after refund: got %d, want 5", balance)
	}
	got, _ := g.GetOffer(ctx, o.ID)
	if got.RedemptionCount != 0 {
		t.Errorf("slot not released: count %d", got.RedemptionCount)
	}

	// A cancelled token can never be validated or re-cancelled.
	if _, err := g.ValidateRedemption(ctx, b.ID, token.Code, "staff"); !errors.Is(err, giya.ErrTokenCancelled) {
		t.Errorf("validate cancelled: got %v, want ErrTokenCancelled", err)
	}
	if _, err := g.CancelRedemption(ctx, token.ID); !errors.Is(err, giya.ErrTokenCancelled) {
		t.Errorf("re-cancel: got %v, want ErrTokenCancelled", err)
	}
}

func TestCancelConsumedToken(t *testing.T) {
	g := newTestEngine(t)
	b := newTestBusiness(t, g)
	o := newTestOffer(t, g, b, 1, 0)
	ctx := context.Background()
	accountID := id.NewAccountID()
	fundAccount(t, g, b, accountID, 1)

	token, err := g.IssueRedemption(ctx, accountID, o.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := g.ValidateRedemption(ctx, b.ID, token.Code, "staff"); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if _, err := g.CancelRedemption(ctx, token.ID); !errors.Is(err, giya.ErrTokenAlreadyConsumed) {
		t.Fatalf("got %v, want ErrTokenAlreadyConsumed", err)
	}

	// No refund happened.
	balance, _ := g.Balance(ctx, accountID)
	if balance != 0 {
		t.Errorf("balance: got %d, want 0", balance)
	}
}

// ──────────────────────────────────────────────────
// Referral commissions
// ──────────────────────────────────────────────────

func TestGrantCommission(t *testing.T) {
	g := newTestEngine(t, giya.WithCommissionRate(5000)) // 50%
	b := newTestBusiness(t, g)
	ctx := context.Background()
	customerID := id.NewAccountID()
	referrerID := id.NewAccountID()

	record, err := g.Accrue(ctx, giya.AccrueInput{
		AccountID:   customerID,
		BusinessID:  b.ID,
		AmountSpent: types.PHP(40000), // 4 points
	})
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}

	grant, err := g.GrantCommission(ctx, record.ID, referrerID)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if grant.Amount != 2 {
		t.Errorf("amount: got %d, want 2", grant.Amount)
	}

	balance, _ := g.Balance(ctx, referrerID)
	if balance != 2 {
		t.Errorf("referrer balance: got %d, want 2", balance)
	}

	// Repeat propagation is a no-op returning the original grant.
	again, err := g.GrantCommission(ctx, record.ID, referrerID)
	if err != nil {
		t.Fatalf("repeat grant: %v", err)
	}
	if again.ID.String() != grant.ID.String() {
		t.Errorf("expected same grant: %s != %s", again.ID, grant.ID)
	}
	balance, _ = g.Balance(ctx, referrerID)
	if balance != 2 {
		t.Errorf("commission credited twice: balance %d", balance)
	}
}

func TestGrantCommissionZeroAmountPersisted(t *testing.T) {
	g := newTestEngine(t)
	b := newTestBusiness(t, g)
	ctx := context.Background()
	customerID := id.NewAccountID()
	referrerID := id.NewAccountID()

	record, err := g.Accrue(ctx, giya.AccrueInput{
		AccountID:   customerID,
		BusinessID:  b.ID,
		AmountSpent: types.PHP(10000), // 1 point, 10% commission floors to 0
	})
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}

	grant, err := g.GrantCommission(ctx, record.ID, referrerID)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if grant.Amount != 0 {
		t.Errorf("amount: got %d, want 0", grant.Amount)
	}

	// The zero grant still blocks any future propagation for this accrual.
	if _, err := g.GetCommissionBySource(ctx, record.ID); err != nil {
		t.Errorf("zero grant not persisted: %v", err)
	}
	balance, _ := g.Balance(ctx, referrerID)
	if balance != 0 {
		t.Errorf("referrer balance: got %d, want 0", balance)
	}
}

// staticResolver maps customers to referrers for tests.
type staticResolver map[string]id.AccountID

func (r staticResolver) ReferrerOf(_ context.Context, accountID id.AccountID) (id.AccountID, bool, error) {
	ref, ok := r[accountID.String()]
	return ref, ok, nil
}

func TestAccruePropagatesCommission(t *testing.T) {
	customerID := id.NewAccountID()
	referrerID := id.NewAccountID()
	resolver := staticResolver{customerID.String(): referrerID}

	g := newTestEngine(t, giya.WithReferralResolver(resolver), giya.WithCommissionRate(2500))
	b := newTestBusiness(t, g)
	ctx := context.Background()

	record, err := g.Accrue(ctx, giya.AccrueInput{
		AccountID:   customerID,
		BusinessID:  b.ID,
		AmountSpent: types.PHP(80000), // 8 points, 25% commission = 2
	})
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}

	grant, err := g.GetCommissionBySource(ctx, record.ID)
	if err != nil {
		t.Fatalf("commission not propagated: %v", err)
	}
	if grant.Amount != 2 {
		t.Errorf("amount: got %d, want 2", grant.Amount)
	}
	if grant.ReferrerAccountID.String() != referrerID.String() {
		t.Errorf("referrer: got %s, want %s", grant.ReferrerAccountID, referrerID)
	}

	balance, _ := g.Balance(ctx, referrerID)
	if balance != 2 {
		t.Errorf("referrer balance: got %d, want 2", balance)
	}
}

func TestAccrueWithoutReferrerNoCommission(t *testing.T) {
	g := newTestEngine(t, giya.WithReferralResolver(staticResolver{}))
	b := newTestBusiness(t, g)
	ctx := context.Background()

	record, err := g.Accrue(ctx, giya.AccrueInput{
		AccountID:   id.NewAccountID(),
		BusinessID:  b.ID,
		AmountSpent: types.PHP(50000),
	})
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}

	if _, err := g.GetCommissionBySource(ctx, record.ID); !errors.Is(err, giya.ErrCommissionNotFound) {
		t.Errorf("got %v, want ErrCommissionNotFound", err)
	}
}

// ──────────────────────────────────────────────────
// Conservation
// ──────────────────────────────────────────────────

// TestPointsConservation walks a full lifecycle and checks that every point
// in circulation is accounted for by accruals, debits, refunds and
// commissions.
func TestPointsConservation(t *testing.T) {
	g := newTestEngine(t, giya.WithCommissionRate(5000))
	b := newTestBusiness(t, g)
	o := newTestOffer(t, g, b, 3, 0)
	ctx := context.Background()
	customerID := id.NewAccountID()
	referrerID := id.NewAccountID()

	record, err := g.Accrue(ctx, giya.AccrueInput{
		AccountID:   customerID,
		BusinessID:  b.ID,
		AmountSpent: types.PHP(100000), // 10 points
	})
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if _, err := g.GrantCommission(ctx, record.ID, referrerID); err != nil {
		t.Fatalf("grant: %v", err)
	}

	issued, err := g.IssueRedemption(ctx, customerID, o.ID) // -3
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := g.ValidateRedemption(ctx, b.ID, issued.Code, "staff"); err != nil {
		t.Fatalf("validate: %v", err)
	}

	cancelled, err := g.IssueRedemption(ctx, customerID, o.ID) // -3, then +3
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := g.CancelRedemption(ctx, cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	customerBalance, _ := g.Balance(ctx, customerID)
	referrerBalance, _ := g.Balance(ctx, referrerID)

	// granted 10, consumed 3, cancelled redemption refunded in full.
	if customerBalance != 7 {
		t.Errorf("customer balance: got %d, want 7", customerBalance)
	}
	// 50% of 10 points.
	if referrerBalance != 5 {
		t.Errorf("referrer balance: got %d, want 5", referrerBalance)
	}
}

// ──────────────────────────────────────────────────
// Plugin events
// ──────────────────────────────────────────────────

// eventRecorder counts lifecycle events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) Name() string { return "event-recorder" }

func (r *eventRecorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func (r *eventRecorder) OnPointsGranted(_ context.Context, _ interface{}) error {
	r.add("points_granted")
	return nil
}

func (r *eventRecorder) OnRedemptionIssued(_ context.Context, _ interface{}) error {
	r.add("redemption_issued")
	return nil
}

func (r *eventRecorder) OnRedemptionConsumed(_ context.Context, _ interface{}) error {
	r.add("redemption_consumed")
	return nil
}

func TestPluginEventsEmitted(t *testing.T) {
	recorder := &eventRecorder{}
	g := newTestEngine(t, giya.WithPlugin(recorder))
	b := newTestBusiness(t, g)
	o := newTestOffer(t, g, b, 1, 0)
	ctx := context.Background()
	accountID := id.NewAccountID()
	fundAccount(t, g, b, accountID, 2)

	token, err := g.IssueRedemption(ctx, accountID, o.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := g.ValidateRedemption(ctx, b.ID, token.Code, "staff"); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if got := recorder.count("points_granted"); got != 1 {
		t.Errorf("points_granted events: got %d, want 1", got)
	}
	if got := recorder.count("redemption_issued"); got != 1 {
		t.Errorf("redemption_issued events: got %d, want 1", got)
	}
	if got := recorder.count("redemption_consumed"); got != 1 {
		t.Errorf("redemption_consumed events: got %d, want 1", got)
	}
}
