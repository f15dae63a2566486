package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/reconcile-cli/internal/model"
)

var (
	learnOrg     string
	learnEntity  string
	learnConfirm string
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Record a confirmed mapping so later imports resolve it automatically",
	Long: `Reads a confirmation file (YAML or JSON) of the form

  headers:
    Correo: email
    Notas: ""        # ignored, never stored
  values:
    currency_code:
      Pesos: 6f1c...

and records every non-empty choice for the organization and entity.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		c, err := readConfirmation(learnConfirm)
		if err != nil {
			return err
		}
		if c.Empty() {
			return eris.New("confirmation has no headers or values")
		}

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		res := env.Engine.Learn(ctx, learnOrg, learnEntity, c)
		if res.Err != nil {
			zap.L().Warn("some patterns were not recorded", zap.Error(res.Err))
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

// readConfirmation parses a YAML or JSON confirmation file.
func readConfirmation(path string) (model.Confirmation, error) {
	var c model.Confirmation
	data, err := os.ReadFile(path)
	if err != nil {
		return c, eris.Wrap(err, "read confirmation")
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, eris.Wrapf(err, "parse confirmation %s", path)
	}
	return c, nil
}

func init() {
	learnCmd.Flags().StringVar(&learnOrg, "org", "", "organization ID (required)")
	learnCmd.Flags().StringVar(&learnEntity, "entity", "", "import entity (required)")
	learnCmd.Flags().StringVar(&learnConfirm, "confirm", "", "path to confirmation YAML/JSON (required)")
	_ = learnCmd.MarkFlagRequired("org")
	_ = learnCmd.MarkFlagRequired("entity")
	_ = learnCmd.MarkFlagRequired("confirm")
	rootCmd.AddCommand(learnCmd)
}
