package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/ratesync/internal/control"
)

var runCmd = &cobra.Command{
	Use:       "run [countries|currencies|all]",
	Short:     "Run a sync task once and exit",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"countries", "currencies", control.TaskAll},
	Run:       runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) {
	task := control.TaskAll
	if len(args) == 1 {
		task = args[0]
	}
	cfg := loadConfig()

	// Interrupts stop the run between batches.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := control.NewApp(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize ratesync", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Close()
	}()

	results, err := app.RunTask(ctx, task)
	for _, r := range results {
		fmt.Printf("%s: success=%t total=%d successful=%d failed=%d skipped=%d unsupported=%d duration=%s\n",
			r.Task, r.Success, r.Stats.Total, r.Stats.Successful, r.Stats.Failed,
			r.Stats.Skipped, r.Stats.Unsupported, r.Duration().Round(time.Millisecond))
	}
	if err != nil {
		slog.Error("Run failed", "task", task, "error", err)
		_ = app.Close()
		os.Exit(1)
	}
}
