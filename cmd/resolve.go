package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/importfile"
)

var (
	resolveOrg     string
	resolveEntity  string
	resolveFile    string
	resolveSheet   string
	resolveCharset string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Suggest header and value mappings for an import file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Engine.Schema().Entity(resolveEntity) == nil {
			zap.L().Warn("entity not in schema registry, treating all fields as references",
				zap.String("entity", resolveEntity),
			)
		}

		sheet, err := importfile.Read(ctx, resolveFile, importOptions())
		if err != nil {
			return eris.Wrap(err, "read import file")
		}

		report := env.Engine.ReconcileSheet(ctx, resolveOrg, resolveEntity, sheet)

		zap.L().Info("resolve complete",
			zap.String("org_id", resolveOrg),
			zap.String("entity", resolveEntity),
			zap.Int("rows", report.Rows),
			zap.Int("unmapped_headers", len(report.UnmappedHeaders)),
		)
		return printJSON(cmd.OutOrStdout(), report)
	},
}

// importOptions merges flags over the configured import defaults.
func importOptions() importfile.Options {
	opts := importfile.Options{Charset: cfg.Import.Charset, Sheet: cfg.Import.Sheet}
	if resolveCharset != "" {
		opts.Charset = resolveCharset
	}
	if resolveSheet != "" {
		opts.Sheet = resolveSheet
	}
	return opts
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode output")
	}
	return nil
}

func init() {
	resolveCmd.Flags().StringVar(&resolveOrg, "org", "", "organization ID (required)")
	resolveCmd.Flags().StringVar(&resolveEntity, "entity", "", "import entity, e.g. payments (required)")
	resolveCmd.Flags().StringVar(&resolveFile, "file", "", "path to CSV or XLSX file (required)")
	resolveCmd.Flags().StringVar(&resolveSheet, "sheet", "", "XLSX worksheet name (default first sheet)")
	resolveCmd.Flags().StringVar(&resolveCharset, "charset", "", "CSV charset, e.g. windows-1252 (default utf-8)")
	_ = resolveCmd.MarkFlagRequired("org")
	_ = resolveCmd.MarkFlagRequired("entity")
	_ = resolveCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(resolveCmd)
}
