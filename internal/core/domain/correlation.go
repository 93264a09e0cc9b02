package domain

import (
	"math/big"
	"time"
)

type CorrelationKind string

const (
	CorrelationSend    CorrelationKind = "send"
	CorrelationReceive CorrelationKind = "receive"
)

// CorrelationResult links a deposit into a stealth address (send) or a
// withdrawal out of it (receive) to the original depositor.
type CorrelationResult struct {
	Kind           CorrelationKind
	OriginalSender Address
	CurrentSender  Address
	Token          Address
	Amount         *big.Int
	Counterparty   Address

	Network     NetworkID
	TxHash      string
	BlockNumber uint64
	// Sponsor is set for relayed withdrawals.
	Sponsor Address
	// Consumed is what a receive released from the pending balance. It is
	// less than Amount when the withdrawal overshoots that balance.
	Consumed *big.Int
}

type Severity string

const (
	SeverityInfo Severity = "info"
)

// Alert is the rendered, transportable form of a CorrelationResult.
type Alert struct {
	ID          string            `json:"id"`
	AlertID     string            `json:"alert_id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Severity    Severity          `json:"severity"`
	Network     NetworkID         `json:"network"`
	TxHash      string            `json:"tx_hash"`
	BlockNumber uint64            `json:"block_number"`
	Metadata    map[string]string `json:"metadata"`
	Addresses   []string          `json:"addresses"`
	CreatedAt   time.Time         `json:"created_at"`
}
