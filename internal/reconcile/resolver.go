package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/normalize"
)

// ResolveHeaders suggests a target field for each raw header. Headers are
// matched verbatim. Headers without a learned pattern are absent from the
// result. A store failure yields an empty result.
func (e *Engine) ResolveHeaders(ctx context.Context, orgID, entity string, headers []string) model.HeaderSuggestions {
	out := make(model.HeaderSuggestions)
	if len(headers) == 0 {
		return out
	}

	idx, err := e.headerIndex(ctx, scopeOf(orgID, entity))
	if err != nil {
		zap.L().Warn("reconcile: header patterns unavailable",
			zap.String("org_id", orgID),
			zap.String("entity", entity),
			zap.Error(err),
		)
		return out
	}

	for _, h := range headers {
		p, ok := idx[h]
		if !ok {
			continue
		}
		out[h] = e.suggest(p.TargetField, p.UsageCount)
	}
	return out
}

// ResolveValues suggests a target ID for each raw value of one field.
// Values of typed fields (email, phone, currency, date) are normalized
// before lookup; other fields match the raw text. Results are keyed by the
// raw input value.
func (e *Engine) ResolveValues(ctx context.Context, orgID, entity, field string, values []string) model.ValueSuggestions {
	out := make(model.ValueSuggestions)
	if len(values) == 0 || field == "" {
		return out
	}

	idx, err := e.valueIndex(ctx, scopeOf(orgID, entity), field)
	if err != nil {
		zap.L().Warn("reconcile: value patterns unavailable",
			zap.String("org_id", orgID),
			zap.String("entity", entity),
			zap.String("field", field),
			zap.Error(err),
		)
		return out
	}

	e.matchValues(out, idx[field], e.schema.KindOf(entity, field), values)
	return out
}

// ResolveAllValues returns every learned value mapping of the entity,
// grouped by comp field. A store failure yields an empty result.
func (e *Engine) ResolveAllValues(ctx context.Context, orgID, entity string) model.FieldValueSuggestions {
	out := make(model.FieldValueSuggestions)

	idx, err := e.valueIndex(ctx, scopeOf(orgID, entity), "")
	if err != nil {
		zap.L().Warn("reconcile: value patterns unavailable",
			zap.String("org_id", orgID),
			zap.String("entity", entity),
			zap.Error(err),
		)
		return out
	}

	for field, byValue := range idx {
		vs := make(model.ValueSuggestions, len(byValue))
		for v, p := range byValue {
			vs[v] = e.suggest(p.TargetID, p.UsageCount)
		}
		out[field] = vs
	}
	return out
}

// matchValues looks each raw value up by its normalized key.
func (e *Engine) matchValues(out model.ValueSuggestions, byKey map[string]model.ValuePattern, kind model.FieldKind, values []string) {
	if len(byKey) == 0 {
		return
	}
	for _, raw := range values {
		key := normalize.Key(kind, raw)
		if key == "" {
			continue
		}
		if p, ok := byKey[key]; ok {
			out[raw] = e.suggest(p.TargetID, p.UsageCount)
		}
	}
}

func (e *Engine) suggest(target string, usage int) model.Suggestion {
	return model.Suggestion{
		Target:     target,
		UsageCount: usage,
		Confidence: Confidence(usage, e.opts.ConfidencePivot),
	}
}
