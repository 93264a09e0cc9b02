package correlation

import (
	"math/big"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/correlation/ledger"
)

// Withdrawal describes one candidate sweep out of a stealth address.
type Withdrawal struct {
	Event *domain.TxEvent
	// Candidate is the stealth address tested against the ledger.
	Candidate domain.Address
	// Source is the address funds are expected to leave from: the candidate
	// itself, or the protocol contract for relayed withdrawals.
	Source domain.Address
	// Sponsor is the relayer named in calldata, empty for self-withdrawals.
	Sponsor domain.Address
	// Native holds internal native transfers; the top-level value is taken
	// from Event.
	Native []domain.TransferEffect
	Tokens []domain.TransferEffect
}

// WithdrawMatcher correlates outflows from stealth addresses with pending deposits.
type WithdrawMatcher struct {
	ledger *ledger.Cache
}

// NewWithdrawMatcher creates a WithdrawMatcher consuming from l.
func NewWithdrawMatcher(l *ledger.Cache) *WithdrawMatcher {
	return &WithdrawMatcher{ledger: l}
}

// Applies reports whether candidate has anything pending on network.
func (m *WithdrawMatcher) Applies(network domain.NetworkID, candidate domain.Address) bool {
	return m.ledger.Holds(network, candidate)
}

// Match accumulates outflows per (token, recipient) and consumes each sum
// from the candidate's pending balance.
func (m *WithdrawMatcher) Match(w Withdrawal) []domain.CorrelationResult {
	ev := w.Event
	if !m.Applies(ev.Network, w.Candidate) {
		return nil
	}

	out := newTally[outflowKey]()

	// A stealth address paying for its own transaction spends value plus fee.
	// Relayed calls cost the stealth address nothing in native currency.
	if ev.From == w.Candidate && ev.To != nil && ev.Value != nil && ev.Value.Sign() > 0 {
		spent := new(big.Int).Add(ev.Value, ev.Fee())
		out.add(outflowKey{Token: domain.NativeToken, Recipient: *ev.To}, spent)
	}

	for _, effects := range [][]domain.TransferEffect{w.Native, w.Tokens} {
		for _, eff := range effects {
			if eff.From == w.Source {
				out.add(outflowKey{Token: eff.Token, Recipient: eff.To}, eff.Amount)
			}
		}
	}

	var results []domain.CorrelationResult
	out.each(func(k outflowKey, amount *big.Int) {
		if amount.Sign() <= 0 {
			return
		}
		key := ledger.Key{Network: ev.Network, Stealth: w.Candidate, Token: k.Token}
		match, ok := m.ledger.Consume(key, amount)
		if !ok {
			return
		}
		results = append(results, domain.CorrelationResult{
			Kind:           domain.CorrelationReceive,
			OriginalSender: match.OriginalSender,
			CurrentSender:  w.Candidate,
			Token:          k.Token,
			Amount:         new(big.Int).Set(amount),
			Counterparty:   k.Recipient,
			Network:        ev.Network,
			TxHash:         ev.Hash,
			BlockNumber:    ev.BlockNumber,
			Sponsor:        w.Sponsor,
			Consumed:       match.Amount,
		})
	})
	return results
}
