// Package replay feeds recorded transactions through the correlation
// engine without a node. Each input line is one JSON Record carrying the
// transaction together with its transfer effects.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/correlation"
	"github.com/vietddude/stealthwatch/internal/indexing/alert"
	"github.com/vietddude/stealthwatch/internal/indexing/emitter"
)

const maxLineSize = 4 << 20

// Transfer is one recorded asset movement. Amounts are decimal or 0x-hex.
type Transfer struct {
	Token  string `json:"token"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Record is one line of a replay file.
type Record struct {
	Network         domain.NetworkID `json:"network"`
	Hash            string           `json:"hash"`
	BlockNumber     uint64           `json:"block_number"`
	From            string           `json:"from"`
	To              string           `json:"to"` // empty for contract creation
	Value           string           `json:"value"`
	GasPrice        string           `json:"gas_price"`
	GasUsed         uint64           `json:"gas_used"`
	Input           string           `json:"input"`
	Status          domain.TxStatus  `json:"status"`
	TokenTransfers  []Transfer       `json:"token_transfers"`
	NativeTransfers []Transfer       `json:"native_transfers"`
}

// Event converts the record into an engine event.
func (r *Record) Event() (*domain.TxEvent, error) {
	value, err := parseAmount(r.Value)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	gasPrice, err := parseAmount(r.GasPrice)
	if err != nil {
		return nil, fmt.Errorf("gas_price: %w", err)
	}
	var data []byte
	if r.Input != "" && r.Input != "0x" {
		if data, err = hexutil.Decode(r.Input); err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
	}

	ev := &domain.TxEvent{
		Network:     r.Network,
		Hash:        strings.ToLower(r.Hash),
		BlockNumber: r.BlockNumber,
		From:        domain.NormalizeAddress(r.From),
		Value:       value,
		GasPrice:    gasPrice,
		GasUsed:     r.GasUsed,
		Data:        data,
		Status:      r.Status,
	}
	if ev.Status == "" {
		ev.Status = domain.TxStatusSuccess
	}
	if r.To != "" {
		to := domain.NormalizeAddress(r.To)
		ev.To = &to
	}
	return ev, nil
}

func parseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return hexutil.DecodeBig(s)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}

func effects(transfers []Transfer, native bool) ([]domain.TransferEffect, error) {
	out := make([]domain.TransferEffect, 0, len(transfers))
	for _, t := range transfers {
		amount, err := parseAmount(t.Amount)
		if err != nil {
			return nil, err
		}
		token := domain.NativeToken
		if !native {
			token = domain.NormalizeAddress(t.Token)
		}
		out = append(out, domain.TransferEffect{
			Token:  token,
			From:   domain.NormalizeAddress(t.From),
			To:     domain.NormalizeAddress(t.To),
			Amount: amount,
		})
	}
	return out, nil
}

// StaticExtractor serves the effects recorded for the current transaction.
type StaticExtractor struct {
	mu     sync.Mutex
	tokens map[string][]domain.TransferEffect
	native map[string][]domain.TransferEffect
}

func NewStaticExtractor() *StaticExtractor {
	return &StaticExtractor{
		tokens: make(map[string][]domain.TransferEffect),
		native: make(map[string][]domain.TransferEffect),
	}
}

// Set replaces the served effects with those of one transaction.
func (s *StaticExtractor) Set(hash string, tokens, native []domain.TransferEffect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = map[string][]domain.TransferEffect{hash: tokens}
	s.native = map[string][]domain.TransferEffect{hash: native}
}

func (s *StaticExtractor) TokenTransfers(ctx context.Context, ev *domain.TxEvent) ([]domain.TransferEffect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[ev.Hash], nil
}

func (s *StaticExtractor) NativeTransfers(ctx context.Context, ev *domain.TxEvent) ([]domain.TransferEffect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.native[ev.Hash], nil
}

// Summary counts what a replay did.
type Summary struct {
	Events  int            `json:"events"`
	Skipped int            `json:"skipped"`
	Errors  int            `json:"errors"`
	Alerts  int            `json:"alerts"`
	ByKind  map[string]int `json:"by_kind"`
	Pending map[string]int `json:"pending"`
}

// Replayer drives a fresh engine from recorded events.
type Replayer struct {
	engine    *correlation.Engine
	extractor *StaticExtractor
	renderer  *alert.Renderer
	emitter   emitter.Emitter
	log       *slog.Logger
}

// New creates a replayer for protocol emitting rendered alerts to em.
func New(protocol correlation.Protocol, renderer *alert.Renderer, em emitter.Emitter, log *slog.Logger) *Replayer {
	if log == nil {
		log = slog.Default()
	}
	extractor := NewStaticExtractor()
	return &Replayer{
		engine:    correlation.NewEngine(protocol, extractor, correlation.WithLogger(log)),
		extractor: extractor,
		renderer:  renderer,
		emitter:   em,
		log:       log,
	}
}

// Run processes every record of in, in order. Malformed lines abort the
// replay; engine errors are counted and skipped as the live pipeline does.
func (r *Replayer) Run(ctx context.Context, in io.Reader) (Summary, error) {
	sum := Summary{ByKind: make(map[string]int), Pending: make(map[string]int)}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return sum, fmt.Errorf("line %d: %w", line, err)
		}
		ev, err := rec.Event()
		if err != nil {
			return sum, fmt.Errorf("line %d: %w", line, err)
		}
		tokens, err := effects(rec.TokenTransfers, false)
		if err != nil {
			return sum, fmt.Errorf("line %d: token_transfers: %w", line, err)
		}
		native, err := effects(rec.NativeTransfers, true)
		if err != nil {
			return sum, fmt.Errorf("line %d: native_transfers: %w", line, err)
		}

		if ev.Status == domain.TxStatusReverted {
			sum.Skipped++
			continue
		}
		sum.Events++

		r.extractor.Set(ev.Hash, tokens, native)
		results, err := r.engine.Process(ctx, ev)
		if err != nil {
			sum.Errors++
			r.log.Warn("Failed to correlate transaction", "line", line, "tx", ev.Hash, "error", err)
			continue
		}
		if len(results) == 0 {
			continue
		}
		for _, res := range results {
			sum.ByKind[string(res.Kind)]++
		}

		alerts := r.renderer.Render(results)
		sum.Alerts += len(alerts)
		if err := r.emitter.Emit(ctx, alerts); err != nil {
			return sum, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return sum, fmt.Errorf("read replay input: %w", err)
	}

	for n, c := range r.engine.PendingCounts() {
		sum.Pending[n.Name()] = c
	}
	return sum, nil
}
