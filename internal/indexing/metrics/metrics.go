package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksProcessed tracks total blocks processed per network
	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stealthwatch_blocks_processed_total",
			Help: "Total number of blocks processed",
		},
		[]string{"network"},
	)

	// EventsProcessed tracks transactions fed to the correlation engine
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stealthwatch_events_processed_total",
			Help: "Total number of transaction events processed",
		},
		[]string{"network"},
	)

	// EventErrors tracks events the engine rejected
	EventErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stealthwatch_event_errors_total",
			Help: "Total number of events that failed correlation",
		},
		[]string{"network"},
	)

	// Correlations tracks emitted correlation records by kind (send, receive)
	Correlations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stealthwatch_correlations_total",
			Help: "Total number of correlation records emitted",
		},
		[]string{"network", "kind"},
	)

	// Overshoots tracks withdrawals larger than the pending balance
	Overshoots = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stealthwatch_ledger_overshoot_total",
			Help: "Withdrawals that exceeded the tracked pending balance",
		},
		[]string{"network"},
	)

	// LedgerPending tracks pending ledger entries per network
	LedgerPending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stealthwatch_ledger_pending_entries",
			Help: "Number of pending (network, stealth, token) entries",
		},
		[]string{"network"},
	)

	// AlertsEmitted tracks alert deliveries per emitter
	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stealthwatch_alerts_emitted_total",
			Help: "Total number of alerts delivered",
		},
		[]string{"emitter"},
	)

	// EmitErrors tracks failed alert deliveries per emitter
	EmitErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stealthwatch_emit_errors_total",
			Help: "Total number of failed alert deliveries",
		},
		[]string{"emitter"},
	)

	// ChainLatestBlock tracks the latest block height of the network
	ChainLatestBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stealthwatch_chain_latest_block",
			Help: "Latest block height of the network",
		},
		[]string{"network"},
	)

	// IndexerLatestBlock tracks the latest block processed by the watcher
	IndexerLatestBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stealthwatch_indexer_latest_block",
			Help: "Latest block height processed by the watcher",
		},
		[]string{"network"},
	)

	// RPCLatency tracks block fetch latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stealthwatch_block_fetch_seconds",
			Help:    "Time to fetch a block with receipts and traces",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network"},
	)

	// RPCRequests tracks JSON-RPC requests per provider and outcome (ok, error, throttled)
	RPCRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stealthwatch_rpc_requests_total",
			Help: "Total number of JSON-RPC requests sent to providers",
		},
		[]string{"provider", "method", "outcome"},
	)

	// RPCRetries tracks retried calls after a transient provider error
	RPCRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stealthwatch_rpc_retries_total",
			Help: "Total number of JSON-RPC retries",
		},
		[]string{"provider"},
	)

	// AlertsPruned tracks alerts removed by the retention worker
	AlertsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stealthwatch_alerts_pruned_total",
			Help: "Total number of stored alerts removed by retention",
		},
	)

	// DBConnectionPoolUsage tracks database pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stealthwatch_db_pool_usage_percent",
			Help: "Percentage of open database connections against the pool limit",
		},
	)
)
