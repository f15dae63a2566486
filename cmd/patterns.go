package main

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/importfile"
	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/normalize"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect and seed learned patterns",
}

var (
	listOrg    string
	listEntity string
	listField  string
)

type patternListing struct {
	Headers []model.HeaderPattern `json:"headers,omitempty"`
	Values  []model.ValuePattern  `json:"values"`
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learned patterns for an organization and entity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		scope := model.Scope{OrganizationID: listOrg, Entity: listEntity}
		var out patternListing
		if listField == "" {
			out.Headers, err = env.Store.ListHeaderPatterns(ctx, scope)
			if err != nil {
				return eris.Wrap(err, "list header patterns")
			}
		}
		out.Values, err = env.Store.ListValuePatterns(ctx, scope, listField)
		if err != nil {
			return eris.Wrap(err, "list value patterns")
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

var (
	seedKind string
	seedCSV  string
)

var patternsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Bulk load historical patterns from a CSV export",
	Long: `Loads header or value patterns from a CSV file. Usage counts are added
to existing patterns.

Header columns: organization_id, entity, source_header, target_field[, usage_count, last_used_at]
Value columns:  organization_id, entity, comp_field, source_value, target_id[, usage_count, last_used_at]

Lines starting with '#' are ignored. A seed older than an existing pattern
adds to its usage count but does not replace its target.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if seedKind != "header" && seedKind != "value" {
			return eris.Errorf("--kind must be header or value, got %q", seedKind)
		}

		sheet, err := readSeedCSV(ctx, seedCSV)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		var n int64
		switch seedKind {
		case "header":
			patterns, perr := parseHeaderSeeds(sheet)
			if perr != nil {
				return perr
			}
			n, err = env.Store.SeedHeaderPatterns(ctx, patterns)
		case "value":
			patterns, perr := parseValueSeeds(sheet, env.Engine.Schema())
			if perr != nil {
				return perr
			}
			n, err = env.Store.SeedValuePatterns(ctx, patterns)
		}
		if err != nil {
			return eris.Wrap(err, "seed patterns")
		}

		zap.L().Info("seed complete",
			zap.String("kind", seedKind),
			zap.Int64("rows", n),
			zap.String("csv", seedCSV),
		)
		return nil
	},
}

func readSeedCSV(ctx context.Context, path string) (*importfile.Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open seed csv")
	}
	defer f.Close() //nolint:errcheck

	sheet, err := importfile.ReadCSV(ctx, f, importfile.Options{
		Charset:   cfg.Import.Charset,
		Comment:   '#',
		TrimSpace: true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "read seed csv")
	}
	return sheet, nil
}

// seedColumns maps lower-cased header names to column indexes and checks
// that every required column is present.
func seedColumns(headers []string, required ...string) (map[string]int, error) {
	cols := make(map[string]int, len(headers))
	for i, h := range headers {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, r := range required {
		if _, ok := cols[r]; !ok {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("seed csv missing columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

// seedMeta reads the optional usage_count and last_used_at columns of row.
// Zero values are filled in by the store.
func seedMeta(cols map[string]int, row []string, line int) (int, time.Time, error) {
	var (
		count    int
		lastUsed time.Time
	)
	if i, ok := cols["usage_count"]; ok && strings.TrimSpace(row[i]) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(row[i]))
		if err != nil || n < 0 {
			return 0, lastUsed, eris.Errorf("seed csv line %d: invalid usage_count %q", line, row[i])
		}
		count = n
	}
	if i, ok := cols["last_used_at"]; ok && strings.TrimSpace(row[i]) != "" {
		t, ok := normalize.Date(row[i])
		if !ok {
			return 0, lastUsed, eris.Errorf("seed csv line %d: invalid last_used_at %q", line, row[i])
		}
		lastUsed = t
	}
	return count, lastUsed, nil
}

func parseHeaderSeeds(sheet *importfile.Sheet) ([]model.HeaderPattern, error) {
	cols, err := seedColumns(sheet.Headers, "organization_id", "entity", "source_header", "target_field")
	if err != nil {
		return nil, err
	}
	out := make([]model.HeaderPattern, 0, len(sheet.Rows))
	for i, row := range sheet.Rows {
		count, lastUsed, err := seedMeta(cols, row, i+2)
		if err != nil {
			return nil, err
		}
		out = append(out, model.HeaderPattern{
			OrganizationID: strings.TrimSpace(row[cols["organization_id"]]),
			Entity:         strings.TrimSpace(row[cols["entity"]]),
			SourceHeader:   row[cols["source_header"]],
			TargetField:    strings.TrimSpace(row[cols["target_field"]]),
			UsageCount:     count,
			LastUsedAt:     lastUsed,
		})
	}
	return out, nil
}

// parseValueSeeds reads value patterns, normalizing source values of typed
// fields the same way confirmations are normalized before storage. Rows
// whose typed value cannot be normalized are dropped.
func parseValueSeeds(sheet *importfile.Sheet, schema *model.SchemaRegistry) ([]model.ValuePattern, error) {
	cols, err := seedColumns(sheet.Headers, "organization_id", "entity", "comp_field", "source_value", "target_id")
	if err != nil {
		return nil, err
	}
	out := make([]model.ValuePattern, 0, len(sheet.Rows))
	dropped := 0
	for i, row := range sheet.Rows {
		count, lastUsed, err := seedMeta(cols, row, i+2)
		if err != nil {
			return nil, err
		}
		entity := strings.TrimSpace(row[cols["entity"]])
		field := strings.TrimSpace(row[cols["comp_field"]])
		if schema.Entity(entity) != nil && !schema.HasField(entity, field) {
			zap.L().Warn("seed row targets a field the entity does not define; matched as raw text",
				zap.Int("line", i+2),
				zap.String("entity", entity),
				zap.String("comp_field", field),
			)
		}
		value := normalize.Key(schema.KindOf(entity, field), row[cols["source_value"]])
		if value == "" {
			dropped++
			continue
		}
		out = append(out, model.ValuePattern{
			OrganizationID: strings.TrimSpace(row[cols["organization_id"]]),
			Entity:         entity,
			CompField:      field,
			SourceValue:    value,
			TargetID:       strings.TrimSpace(row[cols["target_id"]]),
			UsageCount:     count,
			LastUsedAt:     lastUsed,
		})
	}
	if dropped > 0 {
		zap.L().Warn("seed rows dropped: value could not be normalized", zap.Int("dropped", dropped))
	}
	return out, nil
}

func init() {
	patternsListCmd.Flags().StringVar(&listOrg, "org", "", "organization ID (required)")
	patternsListCmd.Flags().StringVar(&listEntity, "entity", "", "import entity (required)")
	patternsListCmd.Flags().StringVar(&listField, "field", "", "only value patterns of this comp field")
	_ = patternsListCmd.MarkFlagRequired("org")
	_ = patternsListCmd.MarkFlagRequired("entity")

	patternsSeedCmd.Flags().StringVar(&seedKind, "kind", "header", "pattern kind: header or value")
	patternsSeedCmd.Flags().StringVar(&seedCSV, "csv", "", "path to CSV file (required)")
	_ = patternsSeedCmd.MarkFlagRequired("csv")

	patternsCmd.AddCommand(patternsListCmd, patternsSeedCmd)
	rootCmd.AddCommand(patternsCmd)
}
