package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/correlation"
	"github.com/vietddude/stealthwatch/internal/indexing/alert"
)

// ErrNoNetworks is returned when the configuration watches nothing.
var ErrNoNetworks = errors.New("no networks configured")

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${ENV} references and
// filling defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Protocol.SendEthSelector == "" {
		cfg.Protocol.SendEthSelector = correlation.SelectorSendEth.String()
	}
	if cfg.Protocol.SendTokenSelector == "" {
		cfg.Protocol.SendTokenSelector = correlation.SelectorSendToken.String()
	}
	if cfg.Protocol.WithdrawTokenOnBehalfSelector == "" {
		cfg.Protocol.WithdrawTokenOnBehalfSelector = correlation.SelectorWithdrawTokenOnBehalf.String()
	}
	if cfg.Protocol.SendAlertID == "" {
		cfg.Protocol.SendAlertID = alert.DefaultSendAlertID
	}
	if cfg.Protocol.ReceiveAlertID == "" {
		cfg.Protocol.ReceiveAlertID = alert.DefaultReceiveAlertID
	}

	for i := range cfg.Networks {
		n := &cfg.Networks[i]
		if n.ScanInterval == 0 {
			n.ScanInterval = 10 * time.Second
		}
		if n.HeadCacheTTL == 0 {
			n.HeadCacheTTL = n.ScanInterval / 2
		}
		if n.FinalityBlocks == 0 {
			n.FinalityBlocks = 1
		}
		if n.Contract == "" {
			n.Contract = string(correlation.DefaultContract)
		}
		if n.Name == "" {
			n.Name = n.ID.Name()
		}
		for j := range n.Providers {
			if n.Providers[j].Timeout == 0 {
				n.Providers[j].Timeout = 10 * time.Second
			}
		}
	}

	if _, err := cfg.CorrelationProtocol(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CorrelationProtocol builds the protocol table used by the correlation engine.
func (c *AppConfig) CorrelationProtocol() (correlation.Protocol, error) {
	var p correlation.Protocol
	var err error
	if p.SendEth, err = correlation.ParseSelector(c.Protocol.SendEthSelector); err != nil {
		return p, err
	}
	if p.SendToken, err = correlation.ParseSelector(c.Protocol.SendTokenSelector); err != nil {
		return p, err
	}
	if p.WithdrawTokenOnBehalf, err = correlation.ParseSelector(c.Protocol.WithdrawTokenOnBehalfSelector); err != nil {
		return p, err
	}

	p.Contracts = make(map[domain.NetworkID]domain.Address, len(c.Networks))
	for _, n := range c.Networks {
		if _, dup := p.Contracts[n.ID]; dup {
			return p, fmt.Errorf("network %d configured twice", n.ID)
		}
		if !isHexAddress(n.Contract) {
			return p, fmt.Errorf("network %d: invalid contract address %q", n.ID, n.Contract)
		}
		p.Contracts[n.ID] = domain.NormalizeAddress(n.Contract)
	}
	return p, nil
}

// Validate checks the settings needed to run the watcher.
func (c *AppConfig) Validate() error {
	if len(c.Networks) == 0 {
		return ErrNoNetworks
	}
	for _, n := range c.Networks {
		if len(n.Providers) == 0 {
			return fmt.Errorf("network %d: no rpc providers", n.ID)
		}
	}
	return nil
}

func isHexAddress(s string) bool {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
