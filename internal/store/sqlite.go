package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db      *sql.DB
	nowFunc func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer at a time; concurrent learner upserts queue on the pool
	// instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, nowFunc: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS header_mapping_patterns (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	entity          TEXT NOT NULL,
	source_header   TEXT NOT NULL,
	target_field    TEXT NOT NULL CHECK (target_field <> ''),
	usage_count     INTEGER NOT NULL DEFAULT 1 CHECK (usage_count > 0),
	last_used_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (organization_id, entity, source_header, target_field)
);

CREATE TABLE IF NOT EXISTS value_mapping_patterns (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	entity          TEXT NOT NULL,
	comp_field      TEXT NOT NULL,
	source_value    TEXT NOT NULL,
	target_id       TEXT NOT NULL CHECK (target_id <> ''),
	usage_count     INTEGER NOT NULL DEFAULT 1 CHECK (usage_count > 0),
	last_used_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (organization_id, entity, comp_field, source_value)
);

CREATE INDEX IF NOT EXISTS idx_header_patterns_scope ON header_mapping_patterns(organization_id, entity);
CREATE INDEX IF NOT EXISTS idx_value_patterns_scope ON value_mapping_patterns(organization_id, entity, comp_field);
`

const (
	sqliteUpsertHeader = `INSERT INTO header_mapping_patterns
	(id, organization_id, entity, source_header, target_field, usage_count, last_used_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (organization_id, entity, source_header, target_field)
	DO UPDATE SET usage_count = usage_count + excluded.usage_count, last_used_at = excluded.last_used_at`

	sqliteUpsertValue = `INSERT INTO value_mapping_patterns
	(id, organization_id, entity, comp_field, source_value, target_id, usage_count, last_used_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (organization_id, entity, comp_field, source_value)
	DO UPDATE SET target_id = excluded.target_id, usage_count = usage_count + excluded.usage_count, last_used_at = excluded.last_used_at`

	// Seeds carry historical timestamps and must not roll back a newer
	// confirmation. Timestamps are UTC text in one layout, so MAX orders them.
	sqliteSeedHeader = `INSERT INTO header_mapping_patterns
	(id, organization_id, entity, source_header, target_field, usage_count, last_used_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (organization_id, entity, source_header, target_field)
	DO UPDATE SET usage_count = usage_count + excluded.usage_count, last_used_at = MAX(last_used_at, excluded.last_used_at)`

	sqliteSeedValue = `INSERT INTO value_mapping_patterns
	(id, organization_id, entity, comp_field, source_value, target_id, usage_count, last_used_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (organization_id, entity, comp_field, source_value)
	DO UPDATE SET target_id = CASE WHEN excluded.last_used_at >= last_used_at THEN excluded.target_id ELSE target_id END,
		usage_count = usage_count + excluded.usage_count, last_used_at = MAX(last_used_at, excluded.last_used_at)`
)

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListHeaderPatterns(ctx context.Context, scope model.Scope) ([]model.HeaderPattern, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, entity, source_header, target_field, usage_count, last_used_at
		 FROM header_mapping_patterns WHERE organization_id = ? AND entity = ?`,
		scope.OrganizationID, scope.Entity,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list header patterns %s/%s", scope.OrganizationID, scope.Entity)
	}
	defer rows.Close()

	var out []model.HeaderPattern
	for rows.Next() {
		var p model.HeaderPattern
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Entity, &p.SourceHeader,
			&p.TargetField, &p.UsageCount, &p.LastUsedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan header pattern")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list header patterns iterate")
	}
	// Timestamps are stored as text, so the ranking is applied here.
	sortHeaderPatterns(out)
	return out, nil
}

func (s *SQLiteStore) ListValuePatterns(ctx context.Context, scope model.Scope, compField string) ([]model.ValuePattern, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}

	query := `SELECT id, organization_id, entity, comp_field, source_value, target_id, usage_count, last_used_at
		FROM value_mapping_patterns WHERE organization_id = ? AND entity = ?`
	args := []any{scope.OrganizationID, scope.Entity}
	if compField != "" {
		query += ` AND comp_field = ?`
		args = append(args, compField)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list value patterns %s/%s", scope.OrganizationID, scope.Entity)
	}
	defer rows.Close()

	var out []model.ValuePattern
	for rows.Next() {
		var p model.ValuePattern
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Entity, &p.CompField,
			&p.SourceValue, &p.TargetID, &p.UsageCount, &p.LastUsedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan value pattern")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list value patterns iterate")
	}
	sortValuePatterns(out)
	return out, nil
}

func (s *SQLiteStore) UpsertHeaderPattern(ctx context.Context, scope model.Scope, sourceHeader, targetField string) error {
	if err := validateHeader(scope, sourceHeader, targetField); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, sqliteUpsertHeader,
		uuid.New().String(), scope.OrganizationID, scope.Entity,
		sourceHeader, targetField, 1, s.nowFunc().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert header pattern %q", sourceHeader)
}

func (s *SQLiteStore) UpsertValuePattern(ctx context.Context, scope model.Scope, compField, sourceValue, targetID string) error {
	if err := validateValue(scope, compField, sourceValue, targetID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, sqliteUpsertValue,
		uuid.New().String(), scope.OrganizationID, scope.Entity,
		compField, sourceValue, targetID, 1, s.nowFunc().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert value pattern %s=%q", compField, sourceValue)
}

func (s *SQLiteStore) SeedHeaderPatterns(ctx context.Context, patterns []model.HeaderPattern) (int64, error) {
	merged := mergeHeaderSeeds(patterns, s.nowFunc().UTC())
	if len(merged) == 0 {
		return 0, nil
	}

	var n int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, sqliteSeedHeader)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare header seed")
		}
		defer stmt.Close() //nolint:errcheck

		for _, p := range merged {
			if _, err := stmt.ExecContext(ctx, uuid.New().String(), p.OrganizationID, p.Entity,
				p.SourceHeader, p.TargetField, p.UsageCount, p.LastUsedAt.UTC()); err != nil {
				return eris.Wrapf(err, "sqlite: seed header %q", p.SourceHeader)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) SeedValuePatterns(ctx context.Context, patterns []model.ValuePattern) (int64, error) {
	merged := mergeValueSeeds(patterns, s.nowFunc().UTC())
	if len(merged) == 0 {
		return 0, nil
	}

	var n int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, sqliteSeedValue)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare value seed")
		}
		defer stmt.Close() //nolint:errcheck

		for _, p := range merged {
			if _, err := stmt.ExecContext(ctx, uuid.New().String(), p.OrganizationID, p.Entity,
				p.CompField, p.SourceValue, p.TargetID, p.UsageCount, p.LastUsedAt.UTC()); err != nil {
				return eris.Wrapf(err, "sqlite: seed value %s=%q", p.CompField, p.SourceValue)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// inTx runs fn in a transaction, committing on success.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}
