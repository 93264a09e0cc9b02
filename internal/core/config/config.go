package config

import (
	"time"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/indexing/emitter"
	redisclient "github.com/vietddude/stealthwatch/internal/infra/redis"
	"github.com/vietddude/stealthwatch/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig        `yaml:"server"`
	Networks []NetworkConfig     `yaml:"networks"`
	Protocol ProtocolConfig      `yaml:"protocol"`
	Redis    redisclient.Config  `yaml:"redis"`
	Kafka    emitter.KafkaConfig `yaml:"kafka"`
	Logging  LoggingConfig       `yaml:"logging"`
	Database postgres.Config     `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ProtocolConfig describes the stealth-address protocol interface.
type ProtocolConfig struct {
	SendEthSelector               string `yaml:"send_eth_selector"`
	SendTokenSelector             string `yaml:"send_token_selector"`
	WithdrawTokenOnBehalfSelector string `yaml:"withdraw_token_on_behalf_selector"`
	SendAlertID                   string `yaml:"send_alert_id"`
	ReceiveAlertID                string `yaml:"receive_alert_id"`
}

// NetworkConfig holds settings for a specific network.
type NetworkConfig struct {
	ID              domain.NetworkID `yaml:"id"`
	Name            string           `yaml:"name"`
	Contract        string           `yaml:"contract"` // protocol contract address
	FinalityBlocks  uint64           `yaml:"finality_blocks"`
	ScanInterval    time.Duration    `yaml:"scan_interval"`
	CatchupInterval time.Duration    `yaml:"catchup_interval"` // scan interval while far behind, 0 = fixed
	HeadCacheTTL    time.Duration    `yaml:"head_cache_ttl"`
	StartBlock      uint64           `yaml:"start_block"` // 0 = start at head
	// TraceInternal enables debug_traceTransaction for internal native
	// transfers. The engine is shared by every network and holds its lock
	// while tracing, so slow traces here delay correlation on the others.
	TraceInternal   bool             `yaml:"trace_internal"`
	Providers       []ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds settings for an RPC provider.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}
