package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/stealthwatch/internal/core/config"
	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/correlation"
	"github.com/vietddude/stealthwatch/internal/indexing/alert"
	"github.com/vietddude/stealthwatch/internal/indexing/emitter"
	"github.com/vietddude/stealthwatch/internal/indexing/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay [file]",
	Short: "Correlate a JSON-lines file of recorded transactions offline",
	Long: `Replay feeds recorded transactions, with their transfer effects, through
a fresh correlation engine and prints one alert per line to stdout. Use "-"
to read from stdin. The protocol table comes from --config when the file
exists, otherwise the default deployment on every known network is used.`,
	Args: cobra.ExactArgs(1),
	Run:  runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) {
	protocol, sendID, receiveID := replayProtocol()

	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			slog.Error("Failed to open replay file", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r := replay.New(protocol, alert.NewRenderer(sendID, receiveID), emitter.NewWriterEmitter(os.Stdout), slog.Default())
	sum, err := r.Run(ctx, in)
	if err != nil {
		slog.Error("Replay failed", "error", err)
		os.Exit(1)
	}

	summary, _ := json.Marshal(sum)
	slog.Info("Replay finished", "summary", string(summary))
}

func replayProtocol() (correlation.Protocol, string, string) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err == nil {
		initLogger(cfg.Logging.Level)
		protocol, err := cfg.CorrelationProtocol()
		if err != nil {
			slog.Error("Invalid protocol config", "error", err)
			os.Exit(1)
		}
		if len(protocol.Contracts) > 0 {
			return protocol, cfg.Protocol.SendAlertID, cfg.Protocol.ReceiveAlertID
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	} else {
		initLogger("")
	}

	networks := make([]domain.NetworkID, 0, len(domain.NetworkIDToName))
	for id := range domain.NetworkIDToName {
		networks = append(networks, id)
	}
	return correlation.DefaultProtocol(networks...), "", ""
}
