package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/stealthwatch/internal/core/config"
)

// newNode serves a chain whose head is fixed and whose blocks are empty.
func newNode(t *testing.T, head uint64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int    `json:"id"`
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var result string
		switch req.Method {
		case "eth_blockNumber":
			result = fmt.Sprintf(`"0x%x"`, head)
		case "eth_getBlockByNumber":
			number := req.Params[0].(string)
			result = fmt.Sprintf(`{"number":%q,"hash":"0x%064x","parentHash":"0x%064x","timestamp":"0x1","transactions":[]}`,
				number, 1, 0)
		default:
			result = "null"
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":%s}`, req.ID, result)
	}))
}

func testConfig(t *testing.T, urls ...string) *config.AppConfig {
	t.Helper()
	yaml := "server:\n  port: 0\nnetworks:\n"
	for i, u := range urls {
		yaml += fmt.Sprintf(`  - id: %d
    finality_blocks: 2
    scan_interval: 10ms
    start_block: 95
    providers:
      - name: local
        url: %s
`, []int{1, 137}[i], u)
	}
	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return cfg
}

func TestWatcher_Lifecycle(t *testing.T) {
	node := newNode(t, 100)
	defer node.Close()

	w, err := NewWatcher(context.Background(), testConfig(t, node.URL), nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if w.store.Kind != "memory" {
		t.Errorf("expected memory storage, got %s", w.store.Kind)
	}
	if len(w.indexers) != 1 {
		t.Errorf("expected 1 indexer, got %d", len(w.indexers))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := w.Start(ctx); err == nil {
		t.Error("expected error when starting twice")
	}

	// Blocks 95..98 are confirmed at head 100 with two confirmations.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s := w.Status(); len(s) == 1 && s[0].CurrentBlock == 98 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	status := w.Status()
	if len(status) != 1 || status[0].CurrentBlock != 98 || status[0].LatestBlock != 100 {
		t.Errorf("unexpected status %+v", status)
	}

	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := w.Stop(ctx); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
}

func TestWatcher_MultiNetwork(t *testing.T) {
	a, b := newNode(t, 10), newNode(t, 20)
	defer a.Close()
	defer b.Close()

	w, err := NewWatcher(context.Background(), testConfig(t, a.URL, b.URL), nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Stop(context.Background())

	if len(w.indexers) != 2 || len(w.clients) != 2 {
		t.Errorf("expected 2 indexers, got %d", len(w.indexers))
	}
	if names := w.emitter.Names(); len(names) != 1 || names[0] != "log" {
		t.Errorf("expected only the log emitter, got %v", names)
	}
}

func TestWatcher_NoNetworks(t *testing.T) {
	cfg, err := config.Parse([]byte("server:\n  port: 0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewWatcher(context.Background(), cfg, nil); !errors.Is(err, config.ErrNoNetworks) {
		t.Errorf("expected ErrNoNetworks, got %v", err)
	}
}
