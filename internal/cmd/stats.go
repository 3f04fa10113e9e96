package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/black-ice-advisory/internal/advisory"
	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	"github.com/couchcryptid/black-ice-advisory/internal/observability"
)

var (
	statsDays          int
	statsMinConfidence float64
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print prediction accuracy and calibration as JSON",
	Long: `Compare predicted and reported road conditions over recent feedback and
print the accuracy breakdown together with the current calibration weights.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().IntVarP(&statsDays, "days", "d", 30, "Only count reports from the last N days")
	statsCmd.Flags().Float64Var(&statsMinConfidence, "min-confidence", 0, "Ignore predictions below this probability (0-1)")
}

type statsOutput struct {
	Accuracy    domain.AccuracyStats       `json:"accuracy"`
	Calibration advisory.CalibrationStatus `json:"calibration"`
}

func runStats(cmd *cobra.Command, _ []string) error {
	if statsDays <= 0 {
		return fmt.Errorf("--days must be positive, got %d", statsDays)
	}
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

	svc := advisory.New(advisory.Deps{
		Store:   store,
		Tracker: domain.NewTracker(clockwork.NewRealClock()),
		Metrics: observability.NewMetrics(),
		Logger:  logger,
	})
	if err := svc.Open(ctx); err != nil {
		return err
	}

	acc, err := svc.FeedbackStats(ctx, statsMinConfidence, time.Duration(statsDays)*24*time.Hour)
	if err != nil {
		return err
	}
	cal, err := svc.Calibration(ctx, 10)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(statsOutput{Accuracy: acc, Calibration: cal})
}
