// Package audithook bridges Giya lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit system. Callers inject a RecorderFunc adapter that
// bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/giya-app/giya/account"
	"github.com/giya-app/giya/accrual"
	"github.com/giya-app/giya/commission"
	"github.com/giya-app/giya/offer"
	"github.com/giya-app/giya/plugin"
	"github.com/giya-app/giya/redemption"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnAccountCreated      = (*Extension)(nil)
	_ plugin.OnPointsGranted       = (*Extension)(nil)
	_ plugin.OnRedemptionIssued    = (*Extension)(nil)
	_ plugin.OnRedemptionConsumed  = (*Extension)(nil)
	_ plugin.OnRedemptionCancelled = (*Extension)(nil)
	_ plugin.OnCommissionGranted   = (*Extension)(nil)
	_ plugin.OnOfferCreated        = (*Extension)(nil)
	_ plugin.OnOfferDeactivated    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that the audit_hook package does not import any
// audit system directly; callers inject the concrete recorder at wiring
// time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Giya lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (e *Extension) OnAccountCreated(ctx context.Context, acct interface{}) error {
	var accountID string
	if a, ok := acct.(*account.Account); ok {
		accountID = a.ID.String()
	}
	return e.record(ctx, ActionAccountCreated, SeverityInfo, OutcomeSuccess,
		ResourceAccount, accountID, CategoryLedger, nil,
		"event", "account_created",
	)
}

// ──────────────────────────────────────────────────
// Accrual lifecycle hooks
// ──────────────────────────────────────────────────

// OnPointsGranted implements plugin.OnPointsGranted.
func (e *Extension) OnPointsGranted(ctx context.Context, record interface{}) error {
	kv := []any{"event", "points_granted"}
	var recordID string
	if r, ok := record.(*accrual.Record); ok {
		recordID = r.ID.String()
		kv = append(kv,
			"account_id", r.AccountID.String(),
			"business_id", r.BusinessID.String(),
			"points", r.PointsGranted,
			"amount_spent", r.AmountSpent.Amount,
		)
	}
	return e.record(ctx, ActionPointsGranted, SeverityInfo, OutcomeSuccess,
		ResourceAccrual, recordID, CategoryLedger, nil, kv...)
}

// ──────────────────────────────────────────────────
// Redemption lifecycle hooks
// ──────────────────────────────────────────────────

// OnRedemptionIssued implements plugin.OnRedemptionIssued.
func (e *Extension) OnRedemptionIssued(ctx context.Context, token interface{}) error {
	kv := []any{"event", "redemption_issued"}
	var tokenID string
	if t, ok := token.(*redemption.Token); ok {
		tokenID = t.ID.String()
		kv = append(kv,
			"account_id", t.AccountID.String(),
			"offer_id", t.OfferID.String(),
			"points_debited", t.PointsDebited,
		)
	}
	return e.record(ctx, ActionRedemptionIssued, SeverityInfo, OutcomeSuccess,
		ResourceRedemption, tokenID, CategoryRedemption, nil, kv...)
}

// OnRedemptionConsumed implements plugin.OnRedemptionConsumed.
func (e *Extension) OnRedemptionConsumed(ctx context.Context, token interface{}) error {
	kv := []any{"event", "redemption_consumed"}
	var tokenID string
	if t, ok := token.(*redemption.Token); ok {
		tokenID = t.ID.String()
		kv = append(kv,
			"business_id", t.BusinessID.String(),
			"consumed_by", t.ConsumedBy,
		)
	}
	return e.record(ctx, ActionRedemptionConsumed, SeverityInfo, OutcomeSuccess,
		ResourceRedemption, tokenID, CategoryRedemption, nil, kv...)
}

// OnRedemptionCancelled implements plugin.OnRedemptionCancelled.
func (e *Extension) OnRedemptionCancelled(ctx context.Context, token interface{}) error {
	kv := []any{"event", "redemption_cancelled"}
	var tokenID string
	if t, ok := token.(*redemption.Token); ok {
		tokenID = t.ID.String()
		kv = append(kv, "points_refunded", t.PointsDebited)
	}
	return e.record(ctx, ActionRedemptionCancelled, SeverityWarning, OutcomeSuccess,
		ResourceRedemption, tokenID, CategoryRedemption, nil, kv...)
}

// ──────────────────────────────────────────────────
// Commission lifecycle hooks
// ──────────────────────────────────────────────────

// OnCommissionGranted implements plugin.OnCommissionGranted.
func (e *Extension) OnCommissionGranted(ctx context.Context, grant interface{}) error {
	kv := []any{"event", "commission_granted"}
	var grantID string
	if g, ok := grant.(*commission.Grant); ok {
		grantID = g.ID.String()
		kv = append(kv,
			"referrer_account_id", g.ReferrerAccountID.String(),
			"source_accrual_id", g.SourceAccrualID.String(),
			"amount", g.Amount,
		)
	}
	return e.record(ctx, ActionCommissionGranted, SeverityInfo, OutcomeSuccess,
		ResourceCommission, grantID, CategoryReferral, nil, kv...)
}

// ──────────────────────────────────────────────────
// Offer lifecycle hooks
// ──────────────────────────────────────────────────

// OnOfferCreated implements plugin.OnOfferCreated.
func (e *Extension) OnOfferCreated(ctx context.Context, o interface{}) error {
	kv := []any{"event", "offer_created"}
	var offerID string
	if of, ok := o.(*offer.Offer); ok {
		offerID = of.ID.String()
		kv = append(kv,
			"business_id", of.BusinessID.String(),
			"kind", string(of.Kind),
			"points_required", of.PointsRequired,
		)
	}
	return e.record(ctx, ActionOfferCreated, SeverityInfo, OutcomeSuccess,
		ResourceOffer, offerID, CategoryCatalog, nil, kv...)
}

// OnOfferDeactivated implements plugin.OnOfferDeactivated.
func (e *Extension) OnOfferDeactivated(ctx context.Context, offerID string) error {
	return e.record(ctx, ActionOfferDeactivated, SeverityInfo, OutcomeSuccess,
		ResourceOffer, offerID, CategoryCatalog, nil,
		"offer_id", offerID,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
