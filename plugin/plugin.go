// Package plugin provides an extensible plugin system for Giya.
// Plugins can hook into ledger lifecycle events to extend functionality.
package plugin

import (
	"context"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountCreated is called when a new points account is created.
type OnAccountCreated interface {
	Plugin
	OnAccountCreated(ctx context.Context, acct interface{}) error
}

// ──────────────────────────────────────────────────
// Accrual hooks
// ──────────────────────────────────────────────────

// OnPointsGranted is called after an accrual commits, including zero-point
// accruals.
type OnPointsGranted interface {
	Plugin
	OnPointsGranted(ctx context.Context, record interface{}) error
}

// ──────────────────────────────────────────────────
// Redemption hooks
// ──────────────────────────────────────────────────

// OnRedemptionIssued is called after a redemption token is minted and the
// points debit commits.
type OnRedemptionIssued interface {
	Plugin
	OnRedemptionIssued(ctx context.Context, token interface{}) error
}

// OnRedemptionConsumed is called after a token is validated by a business.
type OnRedemptionConsumed interface {
	Plugin
	OnRedemptionConsumed(ctx context.Context, token interface{}) error
}

// OnRedemptionCancelled is called after a token is cancelled and the points
// refunded.
type OnRedemptionCancelled interface {
	Plugin
	OnRedemptionCancelled(ctx context.Context, token interface{}) error
}

// ──────────────────────────────────────────────────
// Commission hooks
// ──────────────────────────────────────────────────

// OnCommissionGranted is called after a referral commission grant commits.
type OnCommissionGranted interface {
	Plugin
	OnCommissionGranted(ctx context.Context, grant interface{}) error
}

// ──────────────────────────────────────────────────
// Offer hooks
// ──────────────────────────────────────────────────

// OnOfferCreated is called when a business publishes a new offer.
type OnOfferCreated interface {
	Plugin
	OnOfferCreated(ctx context.Context, o interface{}) error
}

// OnOfferDeactivated is called when an offer is taken down.
type OnOfferDeactivated interface {
	Plugin
	OnOfferDeactivated(ctx context.Context, offerID string) error
}
