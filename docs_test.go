package giya_test

import (
	"context"
	"errors"
	"testing"

	giya "github.com/giya-app/giya"
	"github.com/giya-app/giya/business"
	"github.com/giya-app/giya/id"
	"github.com/giya-app/giya/offer"
	"github.com/giya-app/giya/redemption"
	"github.com/giya-app/giya/store/memory"
)

// TestDocumentationExamples exercises the code shown in the package docs and
// README so the examples keep compiling and behaving as written.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()

		// Initialize store
		store := memory.New()

		// Create engine
		g := giya.New(store)

		// Start the engine (runs migrations)
		if err := g.Start(ctx); err != nil {
			t.Fatalf("start: %v", err)
		}
		defer g.Stop() //nolint:errcheck // example mirrors the docs

		// Businesses set their own conversion rate.
		biz := &business.Business{
			Name:          "Aling Nena's Carinderia",
			SpendPerPoint: 10000, // one point per ₱100.00 spent
			Active:        true,
		}
		if err := g.CreateBusiness(ctx, biz); err != nil {
			t.Fatalf("create business: %v", err)
		}

		// Purchases accrue points into customer accounts.
		custID := id.NewAccountID()
		record, err := g.Accrue(ctx, giya.AccrueInput{
			AccountID:   custID,
			BusinessID:  biz.ID,
			AmountSpent: giya.PHP(25000), // ₱250.00 → 2 points
			Ref:         "payment-txn-001",
		})
		if err != nil {
			t.Fatalf("accrue: %v", err)
		}
		if record.PointsGranted != 2 {
			t.Errorf("points granted: got %d, want 2", record.PointsGranted)
		}

		// Customers spend points on offers.
		reward := &offer.Offer{
			BusinessID:     biz.ID,
			Kind:           offer.KindReward,
			Name:           "Free halo-halo",
			PointsRequired: 2,
			Active:         true,
		}
		if err := g.CreateOffer(ctx, reward); err != nil {
			t.Fatalf("create offer: %v", err)
		}

		token, err := g.IssueRedemption(ctx, custID, reward.ID)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}

		// ... later, at the counter ...
		validated, err := g.ValidateRedemption(ctx, biz.ID, token.Code, "staff-01")
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		if validated.State != redemption.StateConsumed {
			t.Errorf("state: got %s, want consumed", validated.State)
		}
	})

	t.Run("IdempotencyExample", func(t *testing.T) {
		ctx := context.Background()
		g := giya.New(memory.New())
		if err := g.Start(ctx); err != nil {
			t.Fatalf("start: %v", err)
		}
		defer g.Stop() //nolint:errcheck // example mirrors the docs

		biz := &business.Business{Name: "Sari-Sari Store", SpendPerPoint: 5000, Active: true}
		if err := g.CreateBusiness(ctx, biz); err != nil {
			t.Fatalf("create business: %v", err)
		}

		custID := id.NewAccountID()
		in := giya.AccrueInput{
			AccountID:   custID,
			BusinessID:  biz.ID,
			AmountSpent: giya.PHP(10000),
			Ref:         "gcash-retry-42",
		}

		// A webhook retry replays the same payment transaction; the second
		// call returns the original record and grants nothing.
		first, err := g.Accrue(ctx, in)
		if err != nil {
			t.Fatalf("first accrue: %v", err)
		}
		second, err := g.Accrue(ctx, in)
		if err != nil {
			t.Fatalf("second accrue: %v", err)
		}
		if first.ID.String() != second.ID.String() {
			t.Error("retry created a second accrual record")
		}

		balance, err := g.Balance(ctx, custID)
		if err != nil {
			t.Fatalf("balance: %v", err)
		}
		if balance != 2 {
			t.Errorf("balance: got %d, want 2", balance)
		}
	})

	t.Run("ErrorHandlingExample", func(t *testing.T) {
		ctx := context.Background()
		g := giya.New(memory.New())
		if err := g.Start(ctx); err != nil {
			t.Fatalf("start: %v", err)
		}
		defer g.Stop() //nolint:errcheck // example mirrors the docs

		_, err := g.GetAccount(ctx, id.NewAccountID())
		if !giya.IsNotFound(err) {
			t.Errorf("IsNotFound(%v) = false", err)
		}
		if !errors.Is(err, giya.ErrAccountNotFound) {
			t.Errorf("errors.Is mismatch: %v", err)
		}
	})
}
