package reconcile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/registry"
	"github.com/sells-group/reconcile-cli/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListHeaderPatterns(ctx context.Context, scope model.Scope) ([]model.HeaderPattern, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.HeaderPattern), args.Error(1)
}

func (m *mockStore) ListValuePatterns(ctx context.Context, scope model.Scope, compField string) ([]model.ValuePattern, error) {
	args := m.Called(ctx, scope, compField)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ValuePattern), args.Error(1)
}

func (m *mockStore) UpsertHeaderPattern(ctx context.Context, scope model.Scope, sourceHeader, targetField string) error {
	args := m.Called(ctx, scope, sourceHeader, targetField)
	return args.Error(0)
}

func (m *mockStore) UpsertValuePattern(ctx context.Context, scope model.Scope, compField, sourceValue, targetID string) error {
	args := m.Called(ctx, scope, compField, sourceValue, targetID)
	return args.Error(0)
}

func (m *mockStore) SeedHeaderPatterns(ctx context.Context, patterns []model.HeaderPattern) (int64, error) {
	args := m.Called(ctx, patterns)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) SeedValuePatterns(ctx context.Context, patterns []model.ValuePattern) (int64, error) {
	args := m.Called(ctx, patterns)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error    { return m.Called(ctx).Error(0) }
func (m *mockStore) Migrate(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockStore) Close() error                      { return m.Called().Error(0) }

// --- Helpers ---

func builtinSchema(t *testing.T) *model.SchemaRegistry {
	t.Helper()
	reg, err := registry.Builtin()
	require.NoError(t, err)
	return reg
}

// newSQLiteEngine returns an Engine over a fresh on-disk SQLite store.
func newSQLiteEngine(t *testing.T) (*Engine, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "patterns.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return New(st, builtinSchema(t), Options{}), st
}

func repeat(t *testing.T, n int, fn func() error) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, fn())
	}
}
