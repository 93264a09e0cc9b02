package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/indexing/alert"
	"github.com/vietddude/stealthwatch/internal/indexing/emitter"
	"github.com/vietddude/stealthwatch/internal/indexing/throttle"
	"github.com/vietddude/stealthwatch/internal/infra/chain"
	"github.com/vietddude/stealthwatch/internal/infra/storage"
)

// Indexer follows one network and feeds its transactions to the correlator
type Indexer interface {
	// Start begins the indexing process
	Start(ctx context.Context) error

	// Stop gracefully stops the indexer
	Stop() error

	// GetStatus returns current indexing status
	GetStatus() Status
}

type Status struct {
	Network      domain.NetworkID `json:"network"`
	Name         string           `json:"name"`
	CurrentBlock uint64           `json:"current_block"`
	LatestBlock  uint64           `json:"latest_block"`
	Lag          int64            `json:"lag"`
	Running      bool             `json:"running"`
}

// Correlator is the part of the correlation engine the pipeline drives.
type Correlator interface {
	Process(ctx context.Context, ev *domain.TxEvent) ([]domain.CorrelationResult, error)
	PendingCounts() map[domain.NetworkID]int
}

// Config holds indexer configuration
type Config struct {
	Network         domain.NetworkID
	ChainAdapter    chain.Adapter
	Heads           throttle.HeadSource // defaults to ChainAdapter
	Correlator      Correlator
	Renderer        *alert.Renderer
	Emitter         emitter.Emitter
	CursorRepo      storage.CursorRepository
	ScanInterval    time.Duration
	CatchupInterval time.Duration // scan interval while far behind, 0 = always ScanInterval
	FinalityBlocks  uint64
	StartBlock      uint64 // 0 = start at the confirmed head
	BatchSize       int    // max blocks per scan
	Logger          *slog.Logger
}
