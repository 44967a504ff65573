// Package giya provides a hyperlocal loyalty points engine for Go applications.
//
// Giya is designed as a library, not a service. Import it directly into your
// application and give it a store; everything else is plain Go calls. It
// provides:
//
//   - Points accrual from purchases at per-business conversion rates
//   - Single-use redemption tokens, debited at issue time
//   - Exactly-once token validation under arbitrary concurrency
//   - Idempotent referral commission propagation
//   - Pluggable storage (in-memory, SQLite, PostgreSQL, MongoDB)
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/giya-app/giya"
//	    "github.com/giya-app/giya/store/sqlstore"
//	)
//
//	// Initialize store
//	store, err := sqlstore.OpenSQLite("giya.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create engine
//	g := giya.New(store)
//
//	// Start the engine (runs migrations)
//	if err := g.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer g.Stop()
//
// # Core Concepts
//
// Businesses set their own conversion rate in minor currency units per point:
//
//	biz := &business.Business{
//	    Name:          "Aling Nena's Carinderia",
//	    SpendPerPoint: 10000, // one point per ₱100.00 spent
//	    Active:        true,
//	}
//	err := g.CreateBusiness(ctx, biz)
//
// Purchases accrue points into customer accounts:
//
//	record, err := g.Accrue(ctx, giya.AccrueInput{
//	    AccountID:   custID,
//	    BusinessID:  biz.ID,
//	    AmountSpent: giya.PHP(25000), // ₱250.00 → 2 points
//	    Ref:         paymentTxnID,    // idempotency key
//	})
//
// Customers spend points on offers and present the token as a QR code:
//
//	token, err := g.IssueRedemption(ctx, custID, offerID)
//	// ... later, at the counter ...
//	token, err = g.ValidateRedemption(ctx, biz.ID, code, staffID)
//
// # Consistency
//
// Every balance-changing operation runs in a single store transaction with a
// non-negative balance guard, so points are conserved: no purchase grants
// twice, no token validates twice, no balance goes below zero. All point and
// money arithmetic is integer arithmetic; money amounts are in the smallest
// currency unit (centavos for PHP).
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	acct_01h2xcejqtf2nbrexx3vqjhp41  // Account ID
//	rdm_01h2xcejqtf2nbrexx3vqjhp41   // Redemption token ID
//	accr_01h455vb4pex5vsknk084sn02q  // Accrual record ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities. Redemption token codes are
// separate from token IDs: codes are unguessable random strings minted from
// crypto/rand.
package giya
