package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/dal/internal/core/config"
	"github.com/vietddude/dal/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database migration status and row counts",
	Run:   runStatus,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Run:   runMigrate,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func openDB(ctx context.Context, cfg *config.AppConfig) *postgres.DB {
	if !cfg.Database.Enabled() {
		slog.Error("No database configured, set database.url")
		os.Exit(1)
	}
	db, err := postgres.NewDB(ctx, cfg.Database.Config)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	return db
}

func runMigrate(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	ctx := context.Background()
	db := openDB(ctx, cfg)
	defer func() {
		_ = db.Close()
	}()

	if err := db.Migrate(ctx, slog.Default()); err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database is up to date")
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	ctx := context.Background()
	db := openDB(ctx, cfg)
	defer func() {
		_ = db.Close()
	}()

	states, err := db.MigrationStatus(ctx)
	if err != nil {
		slog.Error("Failed to read migration status", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "VERSION\tMIGRATION\tAPPLIED")
	pending := 0
	for _, s := range states {
		applied := "pending"
		if s.Applied {
			applied = s.AppliedAt.Format(time.RFC3339)
		} else {
			pending++
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, s.Name, applied)
	}
	_ = w.Flush()

	if pending > 0 {
		fmt.Printf("\n%d pending migration(s), run `dal migrate`\n", pending)
		return
	}

	categories, err := db.Categories().Count(ctx)
	if err != nil {
		slog.Error("Failed to count categories", "error", err)
		os.Exit(1)
	}
	var products int64
	if err := db.GetContext(ctx, &products, "SELECT COUNT(*) FROM products"); err != nil {
		slog.Error("Failed to count products", "error", err)
		os.Exit(1)
	}
	fmt.Printf("\ncategories: %d\nproducts:   %d\n", categories, products)
}
