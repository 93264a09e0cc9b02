package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/indexing/metrics"
	"github.com/vietddude/stealthwatch/internal/infra/rpc/provider"
	"github.com/vietddude/stealthwatch/internal/infra/rpc/routing"
)

const (
	receiptChunkSize   = 10
	receiptConcurrency = 3
)

// Caller is the RPC surface the adapter needs; *rpc.Client implements it.
type Caller interface {
	Call(ctx context.Context, method string, params []any, out any) error
	BatchCall(ctx context.Context, requests []provider.BatchRequest) ([]provider.BatchResponse, error)
}

// Adapter reads blocks from an EVM JSON-RPC node and decodes them into
// transaction events.
type Adapter struct {
	network domain.NetworkID
	client  Caller
	log     *slog.Logger

	// cleared once the node rejects eth_getBlockReceipts
	blockReceipts atomic.Bool

	// Receipts of the last fetched block, reused by the extractor.
	mu       sync.RWMutex
	receipts map[string]*rpcReceipt
}

func NewAdapter(network domain.NetworkID, client Caller, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	a := &Adapter{
		network:  network,
		client:   client,
		log:      log.With("network", network.Name()),
		receipts: make(map[string]*rpcReceipt),
	}
	a.blockReceipts.Store(true)
	return a
}

func (a *Adapter) Network() domain.NetworkID {
	return a.network
}

func (a *Adapter) LatestBlock(ctx context.Context) (uint64, error) {
	var head hexutil.Uint64
	if err := a.client.Call(ctx, "eth_blockNumber", nil, &head); err != nil {
		return 0, fmt.Errorf("eth_blockNumber failed: %w", err)
	}
	return uint64(head), nil
}

func (a *Adapter) FetchBlock(ctx context.Context, number uint64) (*domain.Block, []*domain.TxEvent, error) {
	start := time.Now()

	var raw *rpcBlock
	if err := a.client.Call(ctx, "eth_getBlockByNumber", []any{hexutil.EncodeUint64(number), true}, &raw); err != nil {
		return nil, nil, fmt.Errorf("eth_getBlockByNumber failed: %w", err)
	}
	if raw == nil {
		return nil, nil, nil // Not found/future
	}

	receipts, err := a.fetchReceipts(ctx, raw)
	if err != nil {
		return nil, nil, err
	}

	a.mu.Lock()
	a.receipts = receipts
	a.mu.Unlock()

	block := &domain.Block{
		Network:    a.network,
		Number:     uint64(raw.Number),
		Hash:       raw.Hash.Hex(),
		ParentHash: raw.ParentHash.Hex(),
		Timestamp:  uint64(raw.Timestamp),
	}

	events := make([]*domain.TxEvent, 0, len(raw.Transactions))
	for i := range raw.Transactions {
		tx := &raw.Transactions[i]
		r, ok := receipts[tx.Hash.Hex()]
		if !ok {
			return nil, nil, fmt.Errorf("missing receipt for %s", tx.Hash.Hex())
		}
		events = append(events, a.toEvent(block.Number, tx, r))
	}

	metrics.RPCLatency.WithLabelValues(a.network.String()).Observe(time.Since(start).Seconds())
	return block, events, nil
}

// Receipt returns the receipt of a transaction, from the last fetched block
// when possible.
func (a *Adapter) Receipt(ctx context.Context, hash string) (*rpcReceipt, error) {
	a.mu.RLock()
	r, ok := a.receipts[hash]
	a.mu.RUnlock()
	if ok {
		return r, nil
	}

	if err := a.client.Call(ctx, "eth_getTransactionReceipt", []any{hash}, &r); err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt failed: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("receipt of %s not found", hash)
	}
	return r, nil
}

func (a *Adapter) fetchReceipts(ctx context.Context, block *rpcBlock) (map[string]*rpcReceipt, error) {
	out := make(map[string]*rpcReceipt, len(block.Transactions))
	if len(block.Transactions) == 0 {
		return out, nil
	}

	if a.blockReceipts.Load() {
		var list []*rpcReceipt
		err := a.client.Call(ctx, "eth_getBlockReceipts", []any{hexutil.EncodeUint64(uint64(block.Number))}, &list)
		if err == nil {
			for _, r := range list {
				if r != nil {
					out[r.TransactionHash.Hex()] = r
				}
			}
			return out, nil
		}
		if routing.ClassifyError(err) != routing.ActionFatal {
			return nil, fmt.Errorf("eth_getBlockReceipts failed: %w", err)
		}
		a.log.Info("eth_getBlockReceipts unsupported, falling back to per-transaction receipts")
		a.blockReceipts.Store(false)
	}

	return a.batchReceipts(ctx, block.Transactions)
}

// batchReceipts fetches receipts in parallel batch chunks. Every receipt is
// required; a block with a missing receipt is retried as a whole.
func (a *Adapter) batchReceipts(ctx context.Context, txs []rpcTx) (map[string]*rpcReceipt, error) {
	var mu sync.Mutex
	out := make(map[string]*rpcReceipt, len(txs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(receiptConcurrency)

	for start := 0; start < len(txs); start += receiptChunkSize {
		chunk := txs[start:min(start+receiptChunkSize, len(txs))]

		g.Go(func() error {
			requests := make([]provider.BatchRequest, len(chunk))
			for i, tx := range chunk {
				requests[i] = provider.BatchRequest{
					Method: "eth_getTransactionReceipt",
					Params: []any{tx.Hash.Hex()},
				}
			}

			responses, err := a.client.BatchCall(ctx, requests)
			if err != nil {
				return fmt.Errorf("batch receipt fetch failed: %w", err)
			}

			for j, resp := range responses {
				hash := chunk[j].Hash.Hex()
				if resp.Error != nil {
					return fmt.Errorf("receipt of %s: %w", hash, resp.Error)
				}
				var r *rpcReceipt
				if err := json.Unmarshal(resp.Result, &r); err != nil {
					return fmt.Errorf("receipt of %s: %w", hash, err)
				}
				if r == nil {
					return fmt.Errorf("receipt of %s not found", hash)
				}
				mu.Lock()
				out[hash] = r
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter) toEvent(blockNumber uint64, tx *rpcTx, r *rpcReceipt) *domain.TxEvent {
	ev := &domain.TxEvent{
		Network:     a.network,
		Hash:        tx.Hash.Hex(),
		BlockNumber: blockNumber,
		From:        domain.NormalizeAddress(tx.From),
		Value:       bigOrZero(tx.Value),
		GasPrice:    bigOrZero(tx.GasPrice),
		GasUsed:     uint64(r.GasUsed),
		Data:        []byte(tx.Input),
		Status:      domain.TxStatusSuccess,
	}
	if tx.To != nil && *tx.To != "" {
		to := domain.NormalizeAddress(*tx.To)
		ev.To = &to
	}
	// The fee actually charged uses the effective price on EIP-1559 networks.
	if r.EffectiveGasPrice != nil {
		ev.GasPrice = (*big.Int)(r.EffectiveGasPrice)
	}
	if r.Status != nil && *r.Status == 0 {
		ev.Status = domain.TxStatusReverted
	}
	return ev
}

func bigOrZero(v *hexutil.Big) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return (*big.Int)(v)
}
