package correlation

import (
	"math/big"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/correlation/ledger"
)

// Deposit is one protocol "send" call with the effects of the asset family
// its selector names.
type Deposit struct {
	Event    *domain.TxEvent
	Contract domain.Address
	Stealth  domain.Address
	Effects  []domain.TransferEffect
}

// SendMatcher records deposits into stealth addresses.
type SendMatcher struct {
	ledger *ledger.Cache
}

// NewSendMatcher creates a SendMatcher writing into l.
func NewSendMatcher(l *ledger.Cache) *SendMatcher {
	return &SendMatcher{ledger: l}
}

// Match sums the effects moving funds from the transaction sender into the
// protocol contract, per token, and records each positive sum as pending
// for the stealth address.
func (m *SendMatcher) Match(d Deposit) []domain.CorrelationResult {
	ev := d.Event
	sent := newTally[domain.Address]()
	for _, eff := range d.Effects {
		if eff.From == ev.From && eff.To == d.Contract {
			sent.add(eff.Token, eff.Amount)
		}
	}

	var results []domain.CorrelationResult
	sent.each(func(token domain.Address, amount *big.Int) {
		if amount.Sign() <= 0 {
			return
		}
		m.ledger.Upsert(ledger.Key{Network: ev.Network, Stealth: d.Stealth, Token: token}, ev.From, amount)
		results = append(results, domain.CorrelationResult{
			Kind:           domain.CorrelationSend,
			OriginalSender: ev.From,
			CurrentSender:  ev.From,
			Token:          token,
			Amount:         new(big.Int).Set(amount),
			Counterparty:   d.Stealth,
			Network:        ev.Network,
			TxHash:         ev.Hash,
			BlockNumber:    ev.BlockNumber,
		})
	})
	return results
}
