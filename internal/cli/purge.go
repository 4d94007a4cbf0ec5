package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/dal/internal/control"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every category and product and drop their cache entries",
	Args:  cobra.NoArgs,
	Run:   runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	if !cfg.Database.Enabled() {
		fmt.Println("Nothing to purge: the memory store is empty at startup")
		return
	}

	ctx := context.Background()
	// The app is never started; it only provides the cached store so redis
	// entries are invalidated along with the rows.
	app, err := control.NewApp(ctx, *cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize DAL service", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Stop(ctx)
	}()

	n, err := app.Store().Categories().DeleteAll(ctx)
	if err != nil {
		slog.Error("Failed to purge categories", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully removed %d categories\n", n)
}
