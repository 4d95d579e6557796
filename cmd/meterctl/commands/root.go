package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/septivank/meter-reading-uploads/internal/config"
	"github.com/septivank/meter-reading-uploads/internal/logging"
	"github.com/septivank/meter-reading-uploads/internal/upload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logLevel string
	logger   *zap.Logger
)

// Execute runs the meterctl command tree.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "meterctl",
		Short:         "Validate and import meter reading CSV files",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotEnv()

			var err error
			logger, err = logging.NewLogger("meterctl", logLevel)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(importCmd(), validateCmd())
	return root
}

// openCSV opens a .csv file for reading, applying the same extension check
// as the upload endpoint.
func openCSV(path string, rules upload.Rules) (*os.File, error) {
	if !strings.EqualFold(filepath.Ext(path), rules.FileExtension) {
		return nil, fmt.Errorf("%s: %s", path, upload.MsgInvalidFileType)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// report writes the result as JSON and fails when any row was rejected.
func report(out io.Writer, result *upload.Result) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	if len(result.Errors) > 0 {
		return fmt.Errorf("%d of %d rows failed with %d errors", result.Failed, result.TotalProcessed, len(result.Errors))
	}
	return nil
}
