package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/stealthwatch/internal/control"
	"github.com/vietddude/stealthwatch/internal/core/domain"
)

var resetCursorCmd = &cobra.Command{
	Use:   "reset-cursor [network_id] [block_height]",
	Short: "Reset the cursor of a network to a block height, or clear it",
	Long: `Reset the cursor of a network so the next run resumes after the given
block. Without a block height the cursor is deleted and the next run starts
from the configured start_block or the confirmed head.

Pending correlation state is not persisted, so deposits made before the new
position are unknown to the next run.`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runResetCursor,
}

func init() {
	rootCmd.AddCommand(resetCursorCmd)
}

func runResetCursor(cmd *cobra.Command, args []string) {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Printf("Invalid network id: %v\n", err)
		os.Exit(1)
	}
	network := domain.NetworkID(id)

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

	if len(args) == 1 {
		if err := store.Cursors.Delete(ctx, network); err != nil {
			slog.Error("Failed to delete cursor", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Successfully cleared cursor for %s\n", network.Name())
		return
	}

	height, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fmt.Printf("Invalid block height: %v\n", err)
		os.Exit(1)
	}
	err = store.Cursors.Save(ctx, &domain.Cursor{
		Network:      network,
		CurrentBlock: height,
		UpdatedAt:    time.Now(),
	})
	if err != nil {
		slog.Error("Failed to reset cursor", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset cursor for %s to block %d\n", network.Name(), height)
}
