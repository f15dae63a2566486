package reconcile

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/importfile"
	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/normalize"
)

// ColumnReport is the reconciliation outcome for one column of a sheet.
type ColumnReport struct {
	Header     string            `json:"header"`
	Suggestion *model.Suggestion `json:"suggestion,omitempty"`
	Kind       model.FieldKind   `json:"kind,omitempty"`
	// Values holds suggestions for the column's distinct values.
	Values model.ValueSuggestions `json:"values,omitempty"`
	// Unmatched lists distinct values with no learned target.
	Unmatched []string `json:"unmatched,omitempty"`
	// Invalid lists values a typed field could not normalize.
	Invalid []string `json:"invalid,omitempty"`
}

// SheetReport is the reconciliation outcome for a whole import sheet.
type SheetReport struct {
	OrganizationID  string         `json:"organization_id"`
	Entity          string         `json:"entity"`
	Rows            int            `json:"rows"`
	Columns         []ColumnReport `json:"columns"`
	UnmappedHeaders []string       `json:"unmapped_headers,omitempty"`
}

// ReconcileSheet resolves the headers of sheet and then the distinct values
// of every mapped column whose field is not free text. Value patterns for
// the whole entity are loaded in one store read.
func (e *Engine) ReconcileSheet(ctx context.Context, orgID, entity string, sheet *importfile.Sheet) *SheetReport {
	report := &SheetReport{OrganizationID: orgID, Entity: entity}
	if sheet == nil {
		return report
	}
	report.Rows = len(sheet.Rows)

	headers := e.ResolveHeaders(ctx, orgID, entity, sheet.Headers)

	var valueIdx map[string]map[string]model.ValuePattern
	if needsValues(e.schema, entity, headers) {
		idx, err := e.valueIndex(ctx, scopeOf(orgID, entity), "")
		if err != nil {
			zap.L().Warn("reconcile: value patterns unavailable",
				zap.String("org_id", orgID),
				zap.String("entity", entity),
				zap.Error(err),
			)
		}
		valueIdx = idx
	}

	for _, h := range sheet.Headers {
		col := ColumnReport{Header: h}
		s, ok := headers[h]
		if !ok {
			report.UnmappedHeaders = append(report.UnmappedHeaders, h)
			report.Columns = append(report.Columns, col)
			continue
		}
		col.Suggestion = &s
		col.Kind = e.schema.KindOf(entity, s.Target)

		if col.Kind != model.KindText {
			distinct := sheet.DistinctValues(h)
			col.Values = make(model.ValueSuggestions)
			e.matchValues(col.Values, valueIdx[s.Target], col.Kind, distinct)
			for _, v := range distinct {
				if _, matched := col.Values[v]; matched {
					continue
				}
				switch {
				case col.Kind.Typed() && normalize.Key(col.Kind, v) == "":
					col.Invalid = append(col.Invalid, v)
				case col.Kind.NeedsValueResolution():
					// Typed values stand on their own; only references need a target.
					col.Unmatched = append(col.Unmatched, v)
				}
			}
		}
		report.Columns = append(report.Columns, col)
	}
	return report
}

// needsValues reports whether any mapped column is matched against learned
// value patterns. Targets the schema does not define count as references.
func needsValues(schema *model.SchemaRegistry, entity string, headers model.HeaderSuggestions) bool {
	refs := schema.ValueFields(entity)
	for _, s := range headers {
		switch {
		case !schema.HasField(entity, s.Target),
			slices.Contains(refs, s.Target),
			schema.KindOf(entity, s.Target).Typed():
			return true
		}
	}
	return false
}
