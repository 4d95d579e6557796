package commands

import (
	"github.com/septivank/meter-reading-uploads/internal/config"
	"github.com/septivank/meter-reading-uploads/internal/db"
	"github.com/septivank/meter-reading-uploads/internal/parser"
	"github.com/septivank/meter-reading-uploads/internal/repository"
	"github.com/septivank/meter-reading-uploads/internal/service"
	"github.com/septivank/meter-reading-uploads/internal/validator"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Validate a CSV file and store its accepted readings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			rules := cfg.Upload.Rules

			f, err := openCSV(args[0], rules)
			if err != nil {
				return err
			}
			defer f.Close()

			pool, err := db.Open(ctx, logger, db.PoolConfig{
				URL:             cfg.Database.URL,
				MaxConns:        cfg.Database.MaxConns,
				MaxConnLifetime: cfg.Database.MaxConnLifetime,
			})
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Ping(ctx, logger, pool); err != nil {
				return err
			}

			repo := repository.NewRepository(pool)
			uploads := service.NewUploadService(
				repo,
				parser.NewRowParser(rules),
				validator.NewValidator(repo, rules),
				nil,
				nil,
				rules,
				logger,
			)

			result := uploads.ProcessUpload(ctx, service.UploadRequest{FileName: f.Name(), Data: f})
			return report(cmd.OutOrStdout(), result)
		},
	}
	return cmd
}
