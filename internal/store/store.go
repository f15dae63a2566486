package store

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/model"
)

var (
	// ErrSkipped is returned for a write whose target is empty. An empty
	// target means the user chose to ignore the header or value; it is
	// never persisted.
	ErrSkipped = eris.New("store: empty target is never persisted")

	// ErrInvalidScope is returned when the organization or entity is missing.
	ErrInvalidScope = eris.New("store: organization and entity are required")
)

// Store persists learned header and value patterns, scoped per organization
// and entity. List methods return records ordered by usage_count DESC,
// last_used_at DESC, id ASC so the first record seen for a key is the
// strongest one.
type Store interface {
	// Reads
	ListHeaderPatterns(ctx context.Context, scope model.Scope) ([]model.HeaderPattern, error)
	// ListValuePatterns returns the patterns of one comp field, or of every
	// field when compField is empty.
	ListValuePatterns(ctx context.Context, scope model.Scope, compField string) ([]model.ValuePattern, error)

	// Writes. Each upsert is one atomic insert-or-increment statement.
	UpsertHeaderPattern(ctx context.Context, scope model.Scope, sourceHeader, targetField string) error
	UpsertValuePattern(ctx context.Context, scope model.Scope, compField, sourceValue, targetID string) error

	// Bulk load of historical patterns. Usage counts are added to existing rows.
	SeedHeaderPatterns(ctx context.Context, patterns []model.HeaderPattern) (int64, error)
	SeedValuePatterns(ctx context.Context, patterns []model.ValuePattern) (int64, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

func validateHeader(scope model.Scope, sourceHeader, targetField string) error {
	if !scope.Valid() {
		return ErrInvalidScope
	}
	if targetField == "" {
		return ErrSkipped
	}
	if sourceHeader == "" {
		return eris.New("store: source header is required")
	}
	return nil
}

func validateValue(scope model.Scope, compField, sourceValue, targetID string) error {
	if !scope.Valid() {
		return ErrInvalidScope
	}
	if targetID == "" {
		return ErrSkipped
	}
	if compField == "" || sourceValue == "" {
		return eris.New("store: comp field and source value are required")
	}
	return nil
}

type headerKey struct {
	org, entity, header, target string
}

// mergeHeaderSeeds drops skipped rows and folds duplicate keys into one
// row whose usage count is the sum and whose last_used_at is the latest.
func mergeHeaderSeeds(patterns []model.HeaderPattern, now time.Time) []model.HeaderPattern {
	idx := make(map[headerKey]int, len(patterns))
	var out []model.HeaderPattern
	for _, p := range patterns {
		scope := model.Scope{OrganizationID: p.OrganizationID, Entity: p.Entity}
		if validateHeader(scope, p.SourceHeader, p.TargetField) != nil {
			continue
		}
		if p.UsageCount <= 0 {
			p.UsageCount = 1
		}
		if p.LastUsedAt.IsZero() {
			p.LastUsedAt = now
		}
		k := headerKey{p.OrganizationID, p.Entity, p.SourceHeader, p.TargetField}
		if i, ok := idx[k]; ok {
			out[i].UsageCount += p.UsageCount
			if p.LastUsedAt.After(out[i].LastUsedAt) {
				out[i].LastUsedAt = p.LastUsedAt
			}
			continue
		}
		idx[k] = len(out)
		out = append(out, p)
	}
	return out
}

type valueKey struct {
	org, entity, field, value string
}

// mergeValueSeeds folds duplicate keys; the most recently used target wins.
func mergeValueSeeds(patterns []model.ValuePattern, now time.Time) []model.ValuePattern {
	idx := make(map[valueKey]int, len(patterns))
	var out []model.ValuePattern
	for _, p := range patterns {
		scope := model.Scope{OrganizationID: p.OrganizationID, Entity: p.Entity}
		if validateValue(scope, p.CompField, p.SourceValue, p.TargetID) != nil {
			continue
		}
		if p.UsageCount <= 0 {
			p.UsageCount = 1
		}
		if p.LastUsedAt.IsZero() {
			p.LastUsedAt = now
		}
		k := valueKey{p.OrganizationID, p.Entity, p.CompField, p.SourceValue}
		if i, ok := idx[k]; ok {
			out[i].UsageCount += p.UsageCount
			if !p.LastUsedAt.Before(out[i].LastUsedAt) {
				out[i].TargetID = p.TargetID
				out[i].LastUsedAt = p.LastUsedAt
			}
			continue
		}
		idx[k] = len(out)
		out = append(out, p)
	}
	return out
}

// sortHeaderPatterns applies the canonical retrieval order in memory.
func sortHeaderPatterns(ps []model.HeaderPattern) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].UsageCount != ps[j].UsageCount {
			return ps[i].UsageCount > ps[j].UsageCount
		}
		if !ps[i].LastUsedAt.Equal(ps[j].LastUsedAt) {
			return ps[i].LastUsedAt.After(ps[j].LastUsedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}

// sortValuePatterns applies the canonical retrieval order in memory.
func sortValuePatterns(ps []model.ValuePattern) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].UsageCount != ps[j].UsageCount {
			return ps[i].UsageCount > ps[j].UsageCount
		}
		if !ps[i].LastUsedAt.Equal(ps[j].LastUsedAt) {
			return ps[i].LastUsedAt.After(ps[j].LastUsedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
