package reconcile

import (
	"context"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// headerIndex keys header patterns by source header. Records arrive
// strongest first, so the first record seen for a header wins.
func (e *Engine) headerIndex(ctx context.Context, scope model.Scope) (map[string]model.HeaderPattern, error) {
	patterns, err := e.store.ListHeaderPatterns(ctx, scope)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]model.HeaderPattern, len(patterns))
	for _, p := range patterns {
		if _, ok := idx[p.SourceHeader]; !ok {
			idx[p.SourceHeader] = p
		}
	}
	return idx, nil
}

// valueIndex groups value patterns by comp field, then by source value, with
// the same first-wins rule. An empty compField loads every field at once.
func (e *Engine) valueIndex(ctx context.Context, scope model.Scope, compField string) (map[string]map[string]model.ValuePattern, error) {
	patterns, err := e.store.ListValuePatterns(ctx, scope, compField)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]map[string]model.ValuePattern)
	for _, p := range patterns {
		byValue, ok := idx[p.CompField]
		if !ok {
			byValue = make(map[string]model.ValuePattern)
			idx[p.CompField] = byValue
		}
		if _, ok := byValue[p.SourceValue]; !ok {
			byValue[p.SourceValue] = p
		}
	}
	return idx, nil
}

// GetHeaderPatterns returns source header -> target field for the scope,
// choosing the most used target when a header has several.
func (e *Engine) GetHeaderPatterns(ctx context.Context, orgID, entity string) (map[string]string, error) {
	idx, err := e.headerIndex(ctx, scopeOf(orgID, entity))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(idx))
	for h, p := range idx {
		out[h] = p.TargetField
	}
	return out, nil
}

// GetValuePatterns returns source value -> target ID for one comp field.
func (e *Engine) GetValuePatterns(ctx context.Context, orgID, entity, field string) (map[string]string, error) {
	if field == "" {
		return map[string]string{}, nil
	}
	idx, err := e.valueIndex(ctx, scopeOf(orgID, entity), field)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(idx[field]))
	for v, p := range idx[field] {
		out[v] = p.TargetID
	}
	return out, nil
}

// GetAllValuePatternsForEntity returns comp field -> source value -> target
// ID for every field with learned patterns, in a single store read.
func (e *Engine) GetAllValuePatternsForEntity(ctx context.Context, orgID, entity string) (map[string]map[string]string, error) {
	idx, err := e.valueIndex(ctx, scopeOf(orgID, entity), "")
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]string, len(idx))
	for field, byValue := range idx {
		m := make(map[string]string, len(byValue))
		for v, p := range byValue {
			m[v] = p.TargetID
		}
		out[field] = m
	}
	return out, nil
}
