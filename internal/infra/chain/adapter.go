package chain

import (
	"context"

	"github.com/vietddude/stealthwatch/internal/core/domain"
)

// Adapter defines the chain-level boundary between the watcher pipeline
// and network-specific decoding.
type Adapter interface {
	// Network returns the network this adapter reads
	Network() domain.NetworkID

	// LatestBlock returns the latest block number on the network
	LatestBlock(ctx context.Context) (uint64, error)

	// FetchBlock fetches a block with its transactions decoded into events,
	// in block order. A nil block means the block is not available yet.
	FetchBlock(ctx context.Context, number uint64) (*domain.Block, []*domain.TxEvent, error)
}
