package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vietddude/ratesync/internal/infra/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply, roll back or show database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	Run:       runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) {
	action := "up"
	if len(args) == 1 {
		action = args[0]
	}
	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("database.url is not set")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	switch action {
	case "up":
		err = db.Migrate(ctx)
	case "down":
		err = db.MigrateDown(ctx)
	}
	if err != nil {
		slog.Error("Migration failed", "action", action, "error", err)
		_ = db.Close()
		os.Exit(1)
	}

	version, err := db.MigrationVersion(ctx)
	if err != nil {
		slog.Error("Failed to read migration version", "error", err)
		_ = db.Close()
		os.Exit(1)
	}
	fmt.Printf("Database version: %d\n", version)
}
