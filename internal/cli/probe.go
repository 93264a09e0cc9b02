package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/vietddude/stealthwatch/internal/infra/rpc/provider"
)

var probeCalls int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Call eth_blockNumber on every configured provider and report latency",
	Run:   runProbe,
}

func init() {
	probeCmd.Flags().IntVar(&probeCalls, "calls", 3, "calls per provider")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "NETWORK\tPROVIDER\tBLOCK\tOK\tAVG LATENCY\tSTATUS")

	for _, n := range cfg.Networks {
		for _, pc := range n.Providers {
			p := provider.NewHTTPProvider(pc.Name, pc.URL, pc.Timeout)

			var head uint64
			ok := 0
			for i := 0; i < probeCalls; i++ {
				raw, err := p.Call(ctx, "eth_blockNumber", []any{})
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s/%s call %d failed: %v\n", n.Name, pc.Name, i+1, err)
					continue
				}
				var hex string
				if err := json.Unmarshal(raw, &hex); err != nil {
					fmt.Fprintf(os.Stderr, "%s/%s call %d: %v\n", n.Name, pc.Name, i+1, err)
					continue
				}
				if head, err = hexutil.DecodeUint64(hex); err != nil {
					fmt.Fprintf(os.Stderr, "%s/%s call %d: %v\n", n.Name, pc.Name, i+1, err)
					continue
				}
				ok++
				time.Sleep(100 * time.Millisecond)
			}

			h := p.GetHealth()
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d/%d\t%s\t%s\n",
				n.Name, pc.Name, head, ok, probeCalls, h.Latency.Round(time.Millisecond), h.Status)
			_ = p.Close()
		}
	}
	_ = w.Flush()
}
