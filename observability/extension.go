// Package observability provides a metrics extension for Giya that records
// lifecycle event counts via a pluggable MetricFactory.
package observability

import (
	"context"

	"github.com/giya-app/giya/accrual"
	"github.com/giya-app/giya/commission"
	"github.com/giya-app/giya/plugin"
	"github.com/giya-app/giya/redemption"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnAccountCreated      = (*MetricsExtension)(nil)
	_ plugin.OnPointsGranted       = (*MetricsExtension)(nil)
	_ plugin.OnRedemptionIssued    = (*MetricsExtension)(nil)
	_ plugin.OnRedemptionConsumed  = (*MetricsExtension)(nil)
	_ plugin.OnRedemptionCancelled = (*MetricsExtension)(nil)
	_ plugin.OnCommissionGranted   = (*MetricsExtension)(nil)
	_ plugin.OnOfferCreated        = (*MetricsExtension)(nil)
	_ plugin.OnOfferDeactivated    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Giya plugin to automatically track loyalty metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	AccountCreated Counter

	// Accrual metrics
	AccrualsRecorded  Counter
	PointsGranted     Counter
	ZeroPointAccruals Counter
	SpendAmount       Histogram

	// Redemption metrics
	RedemptionsIssued    Counter
	RedemptionsConsumed  Counter
	RedemptionsCancelled Counter
	PointsDebited        Histogram

	// Commission metrics
	CommissionsGranted Counter
	CommissionPoints   Counter

	// Offer metrics
	OffersCreated     Counter
	OffersDeactivated Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Account metrics
		AccountCreated: factory.Counter("giya.account.created"),

		// Accrual metrics
		AccrualsRecorded:  factory.Counter("giya.accrual.recorded"),
		PointsGranted:     factory.Counter("giya.accrual.points_granted"),
		ZeroPointAccruals: factory.Counter("giya.accrual.zero_point"),
		SpendAmount:       factory.Histogram("giya.accrual.spend_amount"),

		// Redemption metrics
		RedemptionsIssued:    factory.Counter("giya.redemption.issued"),
		RedemptionsConsumed:  factory.Counter("giya.redemption.consumed"),
		RedemptionsCancelled: factory.Counter("giya.redemption.cancelled"),
		PointsDebited:        factory.Histogram("giya.redemption.points_debited"),

		// Commission metrics
		CommissionsGranted: factory.Counter("giya.commission.granted"),
		CommissionPoints:   factory.Counter("giya.commission.points"),

		// Offer metrics
		OffersCreated:     factory.Counter("giya.offer.created"),
		OffersDeactivated: factory.Counter("giya.offer.deactivated"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (m *MetricsExtension) OnAccountCreated(_ context.Context, _ interface{}) error {
	m.AccountCreated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Accrual lifecycle hooks
// ──────────────────────────────────────────────────

// OnPointsGranted implements plugin.OnPointsGranted.
func (m *MetricsExtension) OnPointsGranted(_ context.Context, record interface{}) error {
	m.AccrualsRecorded.Inc()

	if r, ok := record.(*accrual.Record); ok {
		if r.PointsGranted > 0 {
			m.PointsGranted.Add(float64(r.PointsGranted))
		} else {
			m.ZeroPointAccruals.Inc()
		}
		m.SpendAmount.Observe(float64(r.AmountSpent.Amount))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Redemption lifecycle hooks
// ──────────────────────────────────────────────────

// OnRedemptionIssued implements plugin.OnRedemptionIssued.
func (m *MetricsExtension) OnRedemptionIssued(_ context.Context, token interface{}) error {
	m.RedemptionsIssued.Inc()

	if t, ok := token.(*redemption.Token); ok {
		m.PointsDebited.Observe(float64(t.PointsDebited))
	}
	return nil
}

// OnRedemptionConsumed implements plugin.OnRedemptionConsumed.
func (m *MetricsExtension) OnRedemptionConsumed(_ context.Context, _ interface{}) error {
	m.RedemptionsConsumed.Inc()
	return nil
}

// OnRedemptionCancelled implements plugin.OnRedemptionCancelled.
func (m *MetricsExtension) OnRedemptionCancelled(_ context.Context, _ interface{}) error {
	m.RedemptionsCancelled.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Commission lifecycle hooks
// ──────────────────────────────────────────────────

// OnCommissionGranted implements plugin.OnCommissionGranted.
func (m *MetricsExtension) OnCommissionGranted(_ context.Context, grant interface{}) error {
	m.CommissionsGranted.Inc()

	if g, ok := grant.(*commission.Grant); ok {
		m.CommissionPoints.Add(float64(g.Amount))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Offer lifecycle hooks
// ──────────────────────────────────────────────────

// OnOfferCreated implements plugin.OnOfferCreated.
func (m *MetricsExtension) OnOfferCreated(_ context.Context, _ interface{}) error {
	m.OffersCreated.Inc()
	return nil
}

// OnOfferDeactivated implements plugin.OnOfferDeactivated.
func (m *MetricsExtension) OnOfferDeactivated(_ context.Context, _ string) error {
	m.OffersDeactivated.Inc()
	return nil
}
