package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/stealthwatch/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cursors and stored alert counts of every network",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	store, err := control.OpenStorage(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()
	if store.Kind == "memory" {
		slog.Warn("No database or redis configured, nothing persisted to show")
	}

	cursors, err := store.Cursors.List(ctx)
	if err != nil {
		slog.Error("Failed to list cursors", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "NETWORK\tCHAIN ID\tBLOCK\tHASH\tUPDATED\tALERTS")

	for _, c := range cursors {
		alerts := "-"
		if store.Alerts != nil {
			n, err := store.Alerts.Count(ctx, c.Network)
			if err != nil {
				slog.Warn("Failed to count alerts", "network", c.Network.Name(), "error", err)
			} else {
				alerts = fmt.Sprint(n)
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			c.Network.Name(), c.Network, c.CurrentBlock, c.CurrentBlockHash,
			c.UpdatedAt.Format("2006-01-02 15:04:05"), alerts)
	}
	_ = w.Flush()
}
