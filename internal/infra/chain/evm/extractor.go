package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/correlation"
)

// ERC20 Transfer(address,address,uint256) event signature
var transferEventSig = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

var callTracer = map[string]any{"tracer": "callTracer"}

// Extractor lists transfer effects from receipts and call traces.
type Extractor struct {
	adapter       *Adapter
	traceInternal bool
}

// NewExtractor creates an extractor over a. Internal native transfers are
// only traced when traceInternal is set; the node must serve debug_traceTransaction.
func NewExtractor(a *Adapter, traceInternal bool) *Extractor {
	return &Extractor{adapter: a, traceInternal: traceInternal}
}

func (e *Extractor) TokenTransfers(ctx context.Context, ev *domain.TxEvent) ([]domain.TransferEffect, error) {
	r, err := e.adapter.Receipt(ctx, ev.Hash)
	if err != nil {
		return nil, err
	}
	return tokenTransfers(r.Logs), nil
}

func (e *Extractor) NativeTransfers(ctx context.Context, ev *domain.TxEvent) ([]domain.TransferEffect, error) {
	if !e.traceInternal {
		return nil, nil
	}

	var root callFrame
	if err := e.adapter.client.Call(ctx, "debug_traceTransaction", []any{ev.Hash, callTracer}, &root); err != nil {
		return nil, fmt.Errorf("debug_traceTransaction failed: %w", err)
	}
	if root.Error != "" {
		return nil, nil // reverted, nothing moved
	}

	var out []domain.TransferEffect
	for i := range root.Calls {
		out = internalTransfers(&root.Calls[i], out)
	}
	return out, nil
}

// tokenTransfers decodes ERC-20 Transfer logs. ERC-721 transfers carry the
// token id as a fourth topic and are skipped.
func tokenTransfers(logs []rpcLog) []domain.TransferEffect {
	var out []domain.TransferEffect
	for _, l := range logs {
		if l.Removed || len(l.Topics) != 3 || l.Topics[0] != transferEventSig {
			continue
		}
		if len(l.Data) != 32 {
			continue
		}
		out = append(out, domain.TransferEffect{
			Token:  domain.NormalizeAddress(l.Address),
			From:   domain.AddressFromWord(l.Topics[1].Bytes()),
			To:     domain.AddressFromWord(l.Topics[2].Bytes()),
			Amount: new(big.Int).SetBytes(l.Data),
		})
	}
	return out
}

// internalTransfers walks a call frame depth first, collecting value
// transfers. Failed frames are skipped with their subtree.
func internalTransfers(f *callFrame, out []domain.TransferEffect) []domain.TransferEffect {
	if f.Error != "" {
		return out
	}
	if movesValue(f.Type) && f.Value != nil && f.Value.ToInt().Sign() > 0 {
		out = append(out, domain.TransferEffect{
			Token:  domain.NativeToken,
			From:   domain.NormalizeAddress(f.From),
			To:     domain.NormalizeAddress(f.To),
			Amount: new(big.Int).Set(f.Value.ToInt()),
		})
	}
	for i := range f.Calls {
		out = internalTransfers(&f.Calls[i], out)
	}
	return out
}

func movesValue(callType string) bool {
	switch strings.ToUpper(callType) {
	case "CALL", "CREATE", "CREATE2", "SELFDESTRUCT":
		return true
	}
	return false
}

// Extractors dispatches to the extractor of the event's network.
type Extractors map[domain.NetworkID]correlation.Extractor

func (m Extractors) TokenTransfers(ctx context.Context, ev *domain.TxEvent) ([]domain.TransferEffect, error) {
	e, err := m.lookup(ev)
	if err != nil {
		return nil, err
	}
	return e.TokenTransfers(ctx, ev)
}

func (m Extractors) NativeTransfers(ctx context.Context, ev *domain.TxEvent) ([]domain.TransferEffect, error) {
	e, err := m.lookup(ev)
	if err != nil {
		return nil, err
	}
	return e.NativeTransfers(ctx, ev)
}

func (m Extractors) lookup(ev *domain.TxEvent) (correlation.Extractor, error) {
	e, ok := m[ev.Network]
	if !ok {
		return nil, fmt.Errorf("no extractor for network %s", ev.Network.Name())
	}
	return e, nil
}
