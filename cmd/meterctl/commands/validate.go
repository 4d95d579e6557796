package commands

import (
	"github.com/septivank/meter-reading-uploads/internal/config"
	"github.com/septivank/meter-reading-uploads/internal/parser"
	"github.com/septivank/meter-reading-uploads/internal/service"
	"github.com/septivank/meter-reading-uploads/internal/validator"
	"github.com/spf13/cobra"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file.csv>",
		Short: "Check headers, row format and value range without a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOffline()
			if err != nil {
				return err
			}
			rules := cfg.Upload.Rules

			f, err := openCSV(args[0], rules)
			if err != nil {
				return err
			}
			defer f.Close()

			// Only checks that need no stored data.
			offline := validator.NewValidatorWithRules(nil, rules.DisplayLayout, []validator.Rule{
				validator.ValueRangeRule(rules.MinValue, rules.MaxValue),
			})
			checker := service.NewUploadService(nil, parser.NewRowParser(rules), offline, nil, nil, rules, logger)

			result := checker.CheckUpload(cmd.Context(), service.UploadRequest{FileName: f.Name(), Data: f})
			return report(cmd.OutOrStdout(), result)
		},
	}
	return cmd
}
