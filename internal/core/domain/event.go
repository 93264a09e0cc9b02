package domain

import "math/big"

type TxStatus string

const (
	TxStatusSuccess  TxStatus = "success"
	TxStatusReverted TxStatus = "reverted"
)

// TxEvent is a decoded transaction as seen by the correlation engine.
type TxEvent struct {
	Network     NetworkID `json:"network"`
	Hash        string    `json:"hash"`
	BlockNumber uint64    `json:"block_number"`
	From        Address   `json:"from"`
	To          *Address  `json:"to"` // nil for contract creation
	Value       *big.Int  `json:"value"`
	GasPrice    *big.Int  `json:"gas_price"`
	GasUsed     uint64    `json:"gas_used"`
	Data        []byte    `json:"data"`
	Status      TxStatus  `json:"status"`
}

// Fee returns the fee actually paid by the sender: gasPrice * gasUsed.
func (e *TxEvent) Fee() *big.Int {
	if e.GasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(e.GasPrice, new(big.Int).SetUint64(e.GasUsed))
}

// TransferEffect is one asset movement caused by a transaction.
// Token is NativeToken for base-asset transfers.
type TransferEffect struct {
	Token  Address  `json:"token"`
	From   Address  `json:"from"`
	To     Address  `json:"to"`
	Amount *big.Int `json:"amount"`
}
