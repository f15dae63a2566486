package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/resilience"
)

// GuardedStore wraps a Store with a circuit breaker. While the breaker is
// open, pattern reads and writes fail immediately with
// resilience.ErrCircuitOpen. Migrate, seeding and Close bypass the breaker.
type GuardedStore struct {
	Store
	cb *resilience.CircuitBreaker
}

// NewGuarded wraps inner with a circuit breaker built from cfg. State
// changes are logged.
func NewGuarded(inner Store, cfg resilience.CircuitBreakerConfig) *GuardedStore {
	onChange := cfg.OnStateChange
	cfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("store: circuit breaker state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		if onChange != nil {
			onChange(from, to)
		}
	}
	return &GuardedStore{Store: inner, cb: resilience.NewCircuitBreaker(cfg)}
}

// Breaker exposes the underlying circuit breaker.
func (g *GuardedStore) Breaker() *resilience.CircuitBreaker { return g.cb }

func (g *GuardedStore) Ping(ctx context.Context) error {
	return g.cb.Execute(ctx, g.Store.Ping)
}

func (g *GuardedStore) ListHeaderPatterns(ctx context.Context, scope model.Scope) ([]model.HeaderPattern, error) {
	return resilience.ExecuteVal(ctx, g.cb, func(ctx context.Context) ([]model.HeaderPattern, error) {
		return g.Store.ListHeaderPatterns(ctx, scope)
	})
}

func (g *GuardedStore) ListValuePatterns(ctx context.Context, scope model.Scope, compField string) ([]model.ValuePattern, error) {
	return resilience.ExecuteVal(ctx, g.cb, func(ctx context.Context) ([]model.ValuePattern, error) {
		return g.Store.ListValuePatterns(ctx, scope, compField)
	})
}

func (g *GuardedStore) UpsertHeaderPattern(ctx context.Context, scope model.Scope, sourceHeader, targetField string) error {
	return g.cb.Execute(ctx, func(ctx context.Context) error {
		return g.Store.UpsertHeaderPattern(ctx, scope, sourceHeader, targetField)
	})
}

func (g *GuardedStore) UpsertValuePattern(ctx context.Context, scope model.Scope, compField, sourceValue, targetID string) error {
	return g.cb.Execute(ctx, func(ctx context.Context) error {
		return g.Store.UpsertValuePattern(ctx, scope, compField, sourceValue, targetID)
	})
}
