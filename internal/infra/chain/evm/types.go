package evm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// JSON-RPC shapes of the node responses used by the adapter.

type rpcBlock struct {
	Number       hexutil.Uint64 `json:"number"`
	Hash         common.Hash    `json:"hash"`
	ParentHash   common.Hash    `json:"parentHash"`
	Timestamp    hexutil.Uint64 `json:"timestamp"`
	Transactions []rpcTx        `json:"transactions"`
}

type rpcTx struct {
	Hash     common.Hash   `json:"hash"`
	From     string        `json:"from"`
	To       *string       `json:"to"`
	Value    *hexutil.Big  `json:"value"`
	GasPrice *hexutil.Big  `json:"gasPrice"`
	Input    hexutil.Bytes `json:"input"`
}

type rpcReceipt struct {
	TransactionHash   common.Hash     `json:"transactionHash"`
	Status            *hexutil.Uint64 `json:"status"`
	GasUsed           hexutil.Uint64  `json:"gasUsed"`
	EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice"`
	Logs              []rpcLog        `json:"logs"`
}

type rpcLog struct {
	Address string        `json:"address"`
	Topics  []common.Hash `json:"topics"`
	Data    hexutil.Bytes `json:"data"`
	Removed bool          `json:"removed"`
}

// callFrame is one frame of the callTracer output.
type callFrame struct {
	Type  string       `json:"type"`
	From  string       `json:"from"`
	To    string       `json:"to"`
	Value *hexutil.Big `json:"value"`
	Error string       `json:"error"`
	Calls []callFrame  `json:"calls"`
}
