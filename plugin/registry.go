package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onAccountCreated      []OnAccountCreated
	onPointsGranted       []OnPointsGranted
	onRedemptionIssued    []OnRedemptionIssued
	onRedemptionConsumed  []OnRedemptionConsumed
	onRedemptionCancelled []OnRedemptionCancelled
	onCommissionGranted   []OnCommissionGranted
	onOfferCreated        []OnOfferCreated
	onOfferDeactivated    []OnOfferDeactivated
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnAccountCreated); ok {
		r.onAccountCreated = append(r.onAccountCreated, v)
	}
	if v, ok := p.(OnPointsGranted); ok {
		r.onPointsGranted = append(r.onPointsGranted, v)
	}
	if v, ok := p.(OnRedemptionIssued); ok {
		r.onRedemptionIssued = append(r.onRedemptionIssued, v)
	}
	if v, ok := p.(OnRedemptionConsumed); ok {
		r.onRedemptionConsumed = append(r.onRedemptionConsumed, v)
	}
	if v, ok := p.(OnRedemptionCancelled); ok {
		r.onRedemptionCancelled = append(r.onRedemptionCancelled, v)
	}
	if v, ok := p.(OnCommissionGranted); ok {
		r.onCommissionGranted = append(r.onCommissionGranted, v)
	}
	if v, ok := p.(OnOfferCreated); ok {
		r.onOfferCreated = append(r.onOfferCreated, v)
	}
	if v, ok := p.(OnOfferDeactivated); ok {
		r.onOfferDeactivated = append(r.onOfferDeactivated, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnAccountCreated)(nil)).Elem(), "OnAccountCreated")
	checkInterface(reflect.TypeOf((*OnPointsGranted)(nil)).Elem(), "OnPointsGranted")
	checkInterface(reflect.TypeOf((*OnRedemptionIssued)(nil)).Elem(), "OnRedemptionIssued")
	checkInterface(reflect.TypeOf((*OnRedemptionConsumed)(nil)).Elem(), "OnRedemptionConsumed")
	checkInterface(reflect.TypeOf((*OnRedemptionCancelled)(nil)).Elem(), "OnRedemptionCancelled")
	checkInterface(reflect.TypeOf((*OnCommissionGranted)(nil)).Elem(), "OnCommissionGranted")
	checkInterface(reflect.TypeOf((*OnOfferCreated)(nil)).Elem(), "OnOfferCreated")
	checkInterface(reflect.TypeOf((*OnOfferDeactivated)(nil)).Elem(), "OnOfferDeactivated")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAccountCreated emits an account created event.
func (r *Registry) EmitAccountCreated(ctx context.Context, acct interface{}) {
	r.mu.RLock()
	plugins := r.onAccountCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccountCreated(ctx, acct)
		}); err != nil {
			r.logger.Warn("plugin OnAccountCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPointsGranted emits a points granted event.
func (r *Registry) EmitPointsGranted(ctx context.Context, record interface{}) {
	r.mu.RLock()
	plugins := r.onPointsGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPointsGranted(ctx, record)
		}); err != nil {
			r.logger.Warn("plugin OnPointsGranted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRedemptionIssued emits a redemption issued event.
func (r *Registry) EmitRedemptionIssued(ctx context.Context, token interface{}) {
	r.mu.RLock()
	plugins := r.onRedemptionIssued
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRedemptionIssued(ctx, token)
		}); err != nil {
			r.logger.Warn("plugin OnRedemptionIssued failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRedemptionConsumed emits a redemption consumed event.
func (r *Registry) EmitRedemptionConsumed(ctx context.Context, token interface{}) {
	r.mu.RLock()
	plugins := r.onRedemptionConsumed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRedemptionConsumed(ctx, token)
		}); err != nil {
			r.logger.Warn("plugin OnRedemptionConsumed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRedemptionCancelled emits a redemption cancelled event.
func (r *Registry) EmitRedemptionCancelled(ctx context.Context, token interface{}) {
	r.mu.RLock()
	plugins := r.onRedemptionCancelled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRedemptionCancelled(ctx, token)
		}); err != nil {
			r.logger.Warn("plugin OnRedemptionCancelled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCommissionGranted emits a commission granted event.
func (r *Registry) EmitCommissionGranted(ctx context.Context, grant interface{}) {
	r.mu.RLock()
	plugins := r.onCommissionGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCommissionGranted(ctx, grant)
		}); err != nil {
			r.logger.Warn("plugin OnCommissionGranted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitOfferCreated emits an offer created event.
func (r *Registry) EmitOfferCreated(ctx context.Context, o interface{}) {
	r.mu.RLock()
	plugins := r.onOfferCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnOfferCreated(ctx, o)
		}); err != nil {
			r.logger.Warn("plugin OnOfferCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitOfferDeactivated emits an offer deactivated event.
func (r *Registry) EmitOfferDeactivated(ctx context.Context, offerID string) {
	r.mu.RLock()
	plugins := r.onOfferDeactivated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnOfferDeactivated(ctx, offerID)
		}); err != nil {
			r.logger.Warn("plugin OnOfferDeactivated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins must never block the ledger pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
