// Package correlation links deposits into stealth addresses with the
// withdrawals that later sweep them out.
//
// The Engine is a synchronous reducer over decoded transactions. For every
// event it runs, in order:
//
//  1. the send matcher, when the event deposits into the protocol contract;
//  2. the withdraw matcher for the stealth address named by a relayed
//     withdrawTokenOnBehalf call;
//  3. the withdraw matcher for the event's own sender.
//
// Results are concatenated in that order. Events are processed one at a time.
package correlation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/correlation/ledger"
)

// Extractor lists the transfer effects of a transaction.
type Extractor interface {
	// TokenTransfers returns the token movements of ev.
	TokenTransfers(ctx context.Context, ev *domain.TxEvent) ([]domain.TransferEffect, error)

	// NativeTransfers returns internal native-currency movements of ev,
	// excluding the top-level transaction value.
	NativeTransfers(ctx context.Context, ev *domain.TxEvent) ([]domain.TransferEffect, error)
}

// Engine orchestrates the matchers over a shared ledger.
type Engine struct {
	mu        sync.Mutex
	protocol  Protocol
	ledger    *ledger.Cache
	extractor Extractor
	send      *SendMatcher
	withdraw  *WithdrawMatcher
	log       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLedger makes the engine use l instead of a fresh cache.
func WithLedger(l *ledger.Cache) Option {
	return func(e *Engine) { e.ledger = l }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine for protocol reading effects from extractor.
func NewEngine(protocol Protocol, extractor Extractor, opts ...Option) *Engine {
	contracts := make(map[domain.NetworkID]domain.Address, len(protocol.Contracts))
	for n, addr := range protocol.Contracts {
		contracts[n] = domain.NormalizeAddress(string(addr))
	}
	protocol.Contracts = contracts

	e := &Engine{
		protocol:  protocol,
		extractor: extractor,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ledger == nil {
		e.ledger = ledger.New()
	}
	e.send = NewSendMatcher(e.ledger)
	e.withdraw = NewWithdrawMatcher(e.ledger)
	return e
}

// plan is what the calldata of one event asks for.
type plan struct {
	contract domain.Address
	deposit  bool
	native   bool // deposit of native currency rather than tokens
	behalf   bool
	stealth  domain.Address
	sponsor  domain.Address
}

// effects of one event, fetched once before any ledger mutation.
type effects struct {
	native []domain.TransferEffect
	tokens []domain.TransferEffect
}

// Process correlates one event and returns its records: deposits first,
// then relayed withdrawals, then self-withdrawals. On error the ledger is
// left untouched.
func (e *Engine) Process(ctx context.Context, ev *domain.TxEvent) ([]domain.CorrelationResult, error) {
	if ev == nil || ev.To == nil {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.plan(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to decode calldata of %s: %w", ev.Hash, err)
	}

	needed := p.deposit ||
		(p.behalf && e.withdraw.Applies(ev.Network, p.stealth)) ||
		e.withdraw.Applies(ev.Network, ev.From)
	if !needed {
		return nil, nil
	}

	fx, err := e.extract(ctx, ev)
	if err != nil {
		return nil, err
	}

	var results []domain.CorrelationResult

	if p.deposit {
		d := Deposit{Event: ev, Contract: p.contract, Stealth: p.stealth, Effects: fx.tokens}
		if p.native {
			d.Effects = append(topLevelTransfer(ev), fx.native...)
		}
		results = append(results, e.send.Match(d)...)
	}

	if p.behalf {
		results = append(results, e.withdraw.Match(Withdrawal{
			Event:     ev,
			Candidate: p.stealth,
			Source:    p.contract,
			Sponsor:   p.sponsor,
			Native:    fx.native,
			Tokens:    fx.tokens,
		})...)
	}

	results = append(results, e.withdraw.Match(Withdrawal{
		Event:     ev,
		Candidate: ev.From,
		Source:    ev.From,
		Native:    fx.native,
		Tokens:    fx.tokens,
	})...)

	for _, r := range results {
		e.log.Debug("Correlation detected",
			"kind", r.Kind,
			"network", r.Network,
			"tx", r.TxHash,
			"original_sender", r.OriginalSender,
			"token", r.Token,
			"amount", r.Amount,
			"counterparty", r.Counterparty,
		)
	}

	return results, nil
}

// PendingCounts returns the number of pending ledger entries per network.
func (e *Engine) PendingCounts() map[domain.NetworkID]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Counts()
}

// Close discards all pending state.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ledger.Reset()
	return nil
}

func (e *Engine) plan(ev *domain.TxEvent) (plan, error) {
	var p plan
	contract, ok := e.protocol.Contract(ev.Network)
	if !ok || *ev.To != contract {
		return p, nil
	}
	p.contract = contract

	sel, ok := selectorOf(ev.Data)
	if !ok {
		return p, nil
	}

	switch sel {
	case e.protocol.SendEth:
		p.deposit, p.native = true, true
	case e.protocol.SendToken:
		p.deposit = true
	case e.protocol.WithdrawTokenOnBehalf:
		p.behalf = true
	default:
		return p, nil
	}

	stealth, err := addressArg(ev.Data, stealthArg)
	if err != nil {
		return p, err
	}
	p.stealth = stealth

	if p.behalf {
		sponsor, err := addressArg(ev.Data, sponsorArg)
		if err != nil {
			return p, err
		}
		p.sponsor = sponsor
	}
	return p, nil
}

func (e *Engine) extract(ctx context.Context, ev *domain.TxEvent) (effects, error) {
	var fx effects
	var err error
	if fx.tokens, err = e.extractor.TokenTransfers(ctx, ev); err != nil {
		return fx, fmt.Errorf("failed to extract token transfers of %s: %w", ev.Hash, err)
	}
	if fx.native, err = e.extractor.NativeTransfers(ctx, ev); err != nil {
		return fx, fmt.Errorf("failed to extract native transfers of %s: %w", ev.Hash, err)
	}
	return fx, nil
}

// topLevelTransfer is the native value carried by the transaction itself.
func topLevelTransfer(ev *domain.TxEvent) []domain.TransferEffect {
	if ev.To == nil || ev.Value == nil || ev.Value.Sign() <= 0 {
		return nil
	}
	return []domain.TransferEffect{{
		Token:  domain.NativeToken,
		From:   ev.From,
		To:     *ev.To,
		Amount: ev.Value,
	}}
}
