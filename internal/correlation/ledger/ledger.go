// Package ledger holds the pending-deposit state of the correlation engine.
//
// The cache is keyed by (network, stealth address, token). Every stored
// entry has a strictly positive pending amount; an entry that is consumed
// down to zero or below is removed in the same call. The cache is not safe
// for concurrent use: its owner serializes access.
package ledger

import (
	"math/big"

	"github.com/vietddude/stealthwatch/internal/core/domain"
)

// Key identifies one pending balance.
type Key struct {
	Network domain.NetworkID
	Stealth domain.Address
	Token   domain.Address
}

// Entry is a pending deposit awaiting a correlated withdrawal.
type Entry struct {
	OriginalSender domain.Address
	Pending        *big.Int
}

// Match is the result of a successful Consume.
type Match struct {
	OriginalSender domain.Address
	// Amount is the part of the request that was covered by the pending balance.
	Amount *big.Int
	// Overshoot is the uncovered remainder, zero unless the entry was removed.
	Overshoot *big.Int
	// Removed reports whether the entry was fully consumed.
	Removed bool
}

type holder struct {
	network domain.NetworkID
	stealth domain.Address
}

// Cache is a flat map of pending deposits.
type Cache struct {
	entries map[Key]*Entry
	holders map[holder]int // live entry count per (network, stealth)
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[Key]*Entry),
		holders: make(map[holder]int),
	}
}

// Upsert records a deposit. A new key takes sender as its original sender;
// an existing key keeps its first sender and accumulates amount.
// Non-positive amounts are ignored and Upsert reports false.
func (c *Cache) Upsert(key Key, sender domain.Address, amount *big.Int) bool {
	if amount == nil || amount.Sign() <= 0 {
		return false
	}

	if e, ok := c.entries[key]; ok {
		e.Pending.Add(e.Pending, amount)
		return true
	}

	c.entries[key] = &Entry{
		OriginalSender: sender,
		Pending:        new(big.Int).Set(amount),
	}
	c.holders[holder{key.Network, key.Stealth}]++
	return true
}

// Consume draws amount from the pending balance of key.
// It reports false, without mutation, when no entry exists.
func (c *Cache) Consume(key Key, amount *big.Int) (Match, bool) {
	e, ok := c.entries[key]
	if !ok {
		return Match{}, false
	}
	if amount == nil {
		amount = new(big.Int)
	}

	remaining := new(big.Int).Sub(e.Pending, amount)
	if remaining.Sign() > 0 {
		e.Pending = remaining
		return Match{
			OriginalSender: e.OriginalSender,
			Amount:         new(big.Int).Set(amount),
			Overshoot:      new(big.Int),
		}, true
	}

	c.remove(key)
	return Match{
		OriginalSender: e.OriginalSender,
		Amount:         e.Pending,
		Overshoot:      remaining.Neg(remaining),
		Removed:        true,
	}, true
}

// Holds reports whether any token is pending for stealth on network.
func (c *Cache) Holds(network domain.NetworkID, stealth domain.Address) bool {
	return c.holders[holder{network, stealth}] > 0
}

// Get returns a copy of the entry stored under key.
func (c *Cache) Get(key Key) (Entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return Entry{
		OriginalSender: e.OriginalSender,
		Pending:        new(big.Int).Set(e.Pending),
	}, true
}

// Len returns the number of pending entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Counts returns the number of pending entries per network.
func (c *Cache) Counts() map[domain.NetworkID]int {
	counts := make(map[domain.NetworkID]int)
	for k := range c.entries {
		counts[k.Network]++
	}
	return counts
}

// Reset drops all entries.
func (c *Cache) Reset() {
	clear(c.entries)
	clear(c.holders)
}

func (c *Cache) remove(key Key) {
	delete(c.entries, key)
	h := holder{key.Network, key.Stealth}
	if c.holders[h] <= 1 {
		delete(c.holders, h)
		return
	}
	c.holders[h]--
}
