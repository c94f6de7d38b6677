package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/ratesync/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored counts and the last run of each task",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := control.NewApp(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize ratesync", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Close()
	}()

	countries, err := app.Countries().CountCountries(ctx)
	if err != nil {
		slog.Error("Failed to count countries", "error", err)
		return
	}
	rates, err := app.Rates().CountRates(ctx)
	if err != nil {
		slog.Error("Failed to count rates", "error", err)
		return
	}
	fmt.Printf("Countries: %d\nCurrency rates: %d\n\n", countries, rates)

	results, err := app.LastResults(ctx)
	if err != nil {
		slog.Error("Failed to load last runs", "error", err)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "TASK\tSUCCESS\tTOTAL\tSUCCESSFUL\tFAILED\tSKIPPED\tFINISHED\tERROR")
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s\t%t\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.Task, r.Success, r.Stats.Total, r.Stats.Successful, r.Stats.Failed, r.Stats.Skipped,
			r.FinishedAt.Format(time.RFC3339), r.Error)
	}
	_ = w.Flush()
}
