package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/config"
	"github.com/sells-group/reconcile-cli/internal/reconcile"
	"github.com/sells-group/reconcile-cli/internal/registry"
	"github.com/sells-group/reconcile-cli/internal/resilience"
	"github.com/sells-group/reconcile-cli/internal/store"
)

// appEnv holds the store and engine shared by the serve, resolve, learn and
// patterns commands.
type appEnv struct {
	Store  store.Store
	Engine *reconcile.Engine
}

// Close releases the pattern store.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured pattern store.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "reconcile.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// initEnv validates config for mode, opens and migrates the store, wraps it
// in a circuit breaker, and builds the engine. Callers should defer
// env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	schema, err := registry.Load(cfg.Schema.Path)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	guarded := store.NewGuarded(st, resilience.FromCircuitConfig(
		cfg.Reconcile.BreakerFailures,
		cfg.Reconcile.BreakerResetSecs,
	))

	engine := reconcile.New(guarded, schema, engineOptions(cfg))

	zap.L().Debug("environment ready",
		zap.String("driver", cfg.Store.Driver),
		zap.Int("entities", len(schema.Entities)),
	)
	return &appEnv{Store: guarded, Engine: engine}, nil
}

func engineOptions(c *config.Config) reconcile.Options {
	return reconcile.Options{
		ConfidencePivot: c.Reconcile.ConfidencePivot,
		Concurrency:     c.Learn.Concurrency,
		LearnTimeout:    time.Duration(c.Learn.TimeoutSecs) * time.Second,
	}
}
