package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/db"
	"github.com/sells-group/reconcile-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	nowFunc func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	upsertHeaderSQL = `INSERT INTO header_mapping_patterns
	(id, organization_id, entity, source_header, target_field, usage_count, last_used_at)
	VALUES ($1, $2, $3, $4, $5, 1, $6)
	ON CONFLICT (organization_id, entity, source_header, target_field)
	DO UPDATE SET usage_count = header_mapping_patterns.usage_count + 1, last_used_at = EXCLUDED.last_used_at`

	upsertValueSQL = `INSERT INTO value_mapping_patterns
	(id, organization_id, entity, comp_field, source_value, target_id, usage_count, last_used_at)
	VALUES ($1, $2, $3, $4, $5, $6, 1, $7)
	ON CONFLICT (organization_id, entity, comp_field, source_value)
	DO UPDATE SET target_id = EXCLUDED.target_id, usage_count = value_mapping_patterns.usage_count + 1, last_used_at = EXCLUDED.last_used_at`

	listHeaderSQL = `SELECT id, organization_id, entity, source_header, target_field, usage_count, last_used_at
	FROM header_mapping_patterns
	WHERE organization_id = $1 AND entity = $2
	ORDER BY usage_count DESC, last_used_at DESC, id ASC`

	listValueSQL = `SELECT id, organization_id, entity, comp_field, source_value, target_id, usage_count, last_used_at
	FROM value_mapping_patterns
	WHERE organization_id = $1 AND entity = $2 AND comp_field = $3
	ORDER BY usage_count DESC, last_used_at DESC, id ASC`

	listAllValueSQL = `SELECT id, organization_id, entity, comp_field, source_value, target_id, usage_count, last_used_at
	FROM value_mapping_patterns
	WHERE organization_id = $1 AND entity = $2
	ORDER BY usage_count DESC, last_used_at DESC, id ASC`
)

// preparedStatements lists queries to prepare on each new connection. Every
// resolve and learn request runs one of these.
var preparedStatements = map[string]string{
	"upsert_header":   upsertHeaderSQL,
	"upsert_value":    upsertValueSQL,
	"list_header":     listHeaderSQL,
	"list_value":      listValueSQL,
	"list_all_values": listAllValueSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, nowFunc: time.Now}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller owns the pool's lifecycle.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, nowFunc: time.Now}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS header_mapping_patterns (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	organization_id TEXT NOT NULL,
	entity          TEXT NOT NULL,
	source_header   TEXT NOT NULL,
	target_field    TEXT NOT NULL CHECK (target_field <> ''),
	usage_count     INTEGER NOT NULL DEFAULT 1 CHECK (usage_count > 0),
	last_used_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (organization_id, entity, source_header, target_field)
);

CREATE INDEX IF NOT EXISTS idx_header_patterns_scope_usage
	ON header_mapping_patterns(organization_id, entity, usage_count DESC, last_used_at DESC);

CREATE TABLE IF NOT EXISTS value_mapping_patterns (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	organization_id TEXT NOT NULL,
	entity          TEXT NOT NULL,
	comp_field      TEXT NOT NULL,
	source_value    TEXT NOT NULL,
	target_id       TEXT NOT NULL CHECK (target_id <> ''),
	usage_count     INTEGER NOT NULL DEFAULT 1 CHECK (usage_count > 0),
	last_used_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (organization_id, entity, comp_field, source_value)
);

CREATE INDEX IF NOT EXISTS idx_value_patterns_scope_usage
	ON value_mapping_patterns(organization_id, entity, comp_field, usage_count DESC, last_used_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListHeaderPatterns(ctx context.Context, scope model.Scope) ([]model.HeaderPattern, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}

	rows, err := s.pool.Query(ctx, listHeaderSQL, scope.OrganizationID, scope.Entity)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list header patterns %s/%s", scope.OrganizationID, scope.Entity)
	}
	defer rows.Close()

	var out []model.HeaderPattern
	for rows.Next() {
		var p model.HeaderPattern
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Entity, &p.SourceHeader,
			&p.TargetField, &p.UsageCount, &p.LastUsedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan header pattern")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list header patterns iterate")
}

func (s *PostgresStore) ListValuePatterns(ctx context.Context, scope model.Scope, compField string) ([]model.ValuePattern, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}

	var (
		rows pgx.Rows
		err  error
	)
	if compField == "" {
		rows, err = s.pool.Query(ctx, listAllValueSQL, scope.OrganizationID, scope.Entity)
	} else {
		rows, err = s.pool.Query(ctx, listValueSQL, scope.OrganizationID, scope.Entity, compField)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list value patterns %s/%s", scope.OrganizationID, scope.Entity)
	}
	defer rows.Close()

	var out []model.ValuePattern
	for rows.Next() {
		var p model.ValuePattern
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Entity, &p.CompField,
			&p.SourceValue, &p.TargetID, &p.UsageCount, &p.LastUsedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan value pattern")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list value patterns iterate")
}

func (s *PostgresStore) UpsertHeaderPattern(ctx context.Context, scope model.Scope, sourceHeader, targetField string) error {
	if err := validateHeader(scope, sourceHeader, targetField); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, upsertHeaderSQL,
		uuid.New().String(), scope.OrganizationID, scope.Entity,
		sourceHeader, targetField, s.nowFunc().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert header pattern %q", sourceHeader)
}

func (s *PostgresStore) UpsertValuePattern(ctx context.Context, scope model.Scope, compField, sourceValue, targetID string) error {
	if err := validateValue(scope, compField, sourceValue, targetID); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, upsertValueSQL,
		uuid.New().String(), scope.OrganizationID, scope.Entity,
		compField, sourceValue, targetID, s.nowFunc().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert value pattern %s=%q", compField, sourceValue)
}

var (
	headerSeedConfig = db.UpsertConfig{
		Table:         "header_mapping_patterns",
		Columns:       []string{"id", "organization_id", "entity", "source_header", "target_field", "usage_count", "last_used_at"},
		ConflictKeys:  []string{"organization_id", "entity", "source_header", "target_field"},
		UpdateCols:    []string{"last_used_at"},
		IncrementCols: []string{"usage_count"},
		NewerCol:      "last_used_at",
	}
	valueSeedConfig = db.UpsertConfig{
		Table:         "value_mapping_patterns",
		Columns:       []string{"id", "organization_id", "entity", "comp_field", "source_value", "target_id", "usage_count", "last_used_at"},
		ConflictKeys:  []string{"organization_id", "entity", "comp_field", "source_value"},
		UpdateCols:    []string{"target_id", "last_used_at"},
		IncrementCols: []string{"usage_count"},
		NewerCol:      "last_used_at",
	}
)

func (s *PostgresStore) SeedHeaderPatterns(ctx context.Context, patterns []model.HeaderPattern) (int64, error) {
	merged := mergeHeaderSeeds(patterns, s.nowFunc().UTC())
	rows := make([][]any, 0, len(merged))
	for _, p := range merged {
		rows = append(rows, []any{
			uuid.New().String(), p.OrganizationID, p.Entity, p.SourceHeader,
			p.TargetField, p.UsageCount, p.LastUsedAt,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, headerSeedConfig, rows)
	return n, eris.Wrap(err, "postgres: seed header patterns")
}

func (s *PostgresStore) SeedValuePatterns(ctx context.Context, patterns []model.ValuePattern) (int64, error) {
	merged := mergeValueSeeds(patterns, s.nowFunc().UTC())
	rows := make([][]any, 0, len(merged))
	for _, p := range merged {
		rows = append(rows, []any{
			uuid.New().String(), p.OrganizationID, p.Entity, p.CompField,
			p.SourceValue, p.TargetID, p.UsageCount, p.LastUsedAt,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, valueSeedConfig, rows)
	return n, eris.Wrap(err, "postgres: seed value patterns")
}
