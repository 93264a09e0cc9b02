package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/indexing/alert"
)

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"status": false, "replay": false, "reset-cursor": false, "probe": false, "migrate": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %s not registered", name)
		}
	}
}

func TestReplayProtocol_WithoutConfig(t *testing.T) {
	old := cfgPath
	defer func() { cfgPath = old }()
	cfgPath = filepath.Join(t.TempDir(), "missing.yaml")

	p, sendID, receiveID := replayProtocol()
	if sendID != "" || receiveID != "" {
		t.Errorf("expected default alert ids, got %q %q", sendID, receiveID)
	}
	if len(p.Contracts) != len(domain.NetworkIDToName) {
		t.Errorf("expected every known network, got %d", len(p.Contracts))
	}
}

func TestReplayProtocol_FromConfig(t *testing.T) {
	old := cfgPath
	defer func() { cfgPath = old }()
	cfgPath = filepath.Join(t.TempDir(), "config.yaml")

	yml := `
protocol:
  send_alert_id: CUSTOM-SEND
networks:
  - id: 137
    providers:
      - name: local
        url: http://127.0.0.1:8545
`
	if err := os.WriteFile(cfgPath, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	p, sendID, receiveID := replayProtocol()
	if sendID != "CUSTOM-SEND" || receiveID != alert.DefaultReceiveAlertID {
		t.Errorf("unexpected alert ids %q %q", sendID, receiveID)
	}
	if len(p.Contracts) != 1 {
		t.Errorf("expected 1 network, got %d", len(p.Contracts))
	}
	if _, ok := p.Contracts[domain.NetworkPolygon]; !ok {
		t.Error("expected polygon contract")
	}
}
