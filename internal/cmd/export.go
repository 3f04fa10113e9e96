package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/black-ice-advisory/internal/adapter/http"
	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

var (
	exportDays   int
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export feedback reports as CSV",
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().IntVarP(&exportDays, "days", "d", 0, "Only export reports from the last N days (0 = all)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to this file instead of stdout")
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck // read-only

	var since time.Time
	if exportDays > 0 {
		since = domain.Now().AddDate(0, 0, -exportDays)
	}
	reports, err := store.Reports(ctx, since)
	if err != nil {
		return fmt.Errorf("load feedback: %w", err)
	}
	body, err := httpadapter.EncodeFeedbackCSV(reports)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close() //nolint:errcheck // os.File writes are unbuffered
		out = f
	}
	if _, err := out.Write(body); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	logger.Info("feedback exported", "reports", len(reports), "output", exportOutput)
	return nil
}
