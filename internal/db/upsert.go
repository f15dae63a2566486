package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig defines the parameters for a bulk upsert operation.
type UpsertConfig struct {
	Table         string   // target table (e.g., "header_mapping_patterns")
	Columns       []string // all columns being inserted
	ConflictKeys  []string // columns forming the unique constraint
	UpdateCols    []string // columns overwritten on conflict; nil = all non-conflict, non-increment columns
	IncrementCols []string // columns summed with the existing row on conflict
	// NewerCol, when set, guards UpdateCols: they are overwritten only by rows
	// at least as recent in this column, and the column keeps the later value.
	NewerCol string
}

// BulkUpsert performs a bulk upsert via a temp table and INSERT ... ON CONFLICT.
//  1. Creates a temp table shaped like the target
//  2. COPY rows into the temp table
//  3. INSERT INTO target SELECT ... FROM temp ON CONFLICT (keys) DO UPDATE SET ...
//
// Rows must not repeat a conflict key; PostgreSQL rejects touching the same
// target row twice in one statement.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.New("db: upsert: no conflict keys specified")
	}

	setClauses := buildSetClauses(cfg)
	if len(setClauses) == 0 {
		return 0, eris.New("db: upsert: nothing to update on conflict")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	tempTable := fmt.Sprintf("_tmp_upsert_%s", strings.ReplaceAll(cfg.Table, ".", "_"))

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(),
		sanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into temp table for %s", cfg.Table)
	}

	colList := quoteAndJoin(cfg.Columns)
	upsertSQL := fmt.Sprintf(
		"INSERT INTO %s AS t (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		sanitizeTable(cfg.Table),
		colList,
		colList,
		pgx.Identifier{tempTable}.Sanitize(),
		quoteAndJoin(cfg.ConflictKeys),
		strings.Join(setClauses, ", "),
	)

	tag, err := tx.Exec(ctx, upsertSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: INSERT ON CONFLICT for %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	committed = true

	return tag.RowsAffected(), nil
}

func buildSetClauses(cfg UpsertConfig) []string {
	skip := make(map[string]bool, len(cfg.ConflictKeys)+len(cfg.IncrementCols))
	for _, k := range cfg.ConflictKeys {
		skip[k] = true
	}
	for _, k := range cfg.IncrementCols {
		skip[k] = true
	}
	if cfg.NewerCol != "" {
		skip[cfg.NewerCol] = true
	}

	updateCols := cfg.UpdateCols
	if updateCols == nil {
		for _, c := range cfg.Columns {
			if !skip[c] {
				updateCols = append(updateCols, c)
			}
		}
	}

	newer := pgx.Identifier{cfg.NewerCol}.Sanitize()

	var clauses []string
	for _, col := range updateCols {
		if col == cfg.NewerCol {
			continue
		}
		id := pgx.Identifier{col}.Sanitize()
		if cfg.NewerCol == "" {
			clauses = append(clauses, fmt.Sprintf("%s = EXCLUDED.%s", id, id))
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s = CASE WHEN EXCLUDED.%s >= t.%s THEN EXCLUDED.%s ELSE t.%s END",
			id, newer, newer, id, id))
	}
	for _, col := range cfg.IncrementCols {
		id := pgx.Identifier{col}.Sanitize()
		clauses = append(clauses, fmt.Sprintf("%s = t.%s + EXCLUDED.%s", id, id, id))
	}
	if cfg.NewerCol != "" {
		clauses = append(clauses, fmt.Sprintf("%s = GREATEST(t.%s, EXCLUDED.%s)", newer, newer, newer))
	}
	return clauses
}

// sanitizeTable handles schema-qualified table names like "public.header_mapping_patterns".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
