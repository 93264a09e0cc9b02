package correlation

import (
	"math/big"

	"github.com/vietddude/stealthwatch/internal/core/domain"
)

// outflowKey groups withdrawal outflows by asset and recipient.
type outflowKey struct {
	Token     domain.Address
	Recipient domain.Address
}

// tally sums big amounts per key and remembers first-seen key order so the
// emitted records are deterministic.
type tally[K comparable] struct {
	keys []K
	sums map[K]*big.Int
}

func newTally[K comparable]() *tally[K] {
	return &tally[K]{sums: make(map[K]*big.Int)}
}

func (t *tally[K]) add(k K, amount *big.Int) {
	if amount == nil {
		return
	}
	sum, ok := t.sums[k]
	if !ok {
		t.keys = append(t.keys, k)
		t.sums[k] = new(big.Int).Set(amount)
		return
	}
	sum.Add(sum, amount)
}

func (t *tally[K]) each(fn func(k K, sum *big.Int)) {
	for _, k := range t.keys {
		fn(k, t.sums[k])
	}
}
