package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/infra/rpc"
	"github.com/vietddude/stealthwatch/internal/infra/rpc/provider"
)

// mockCaller answers calls from canned JSON results keyed by method.
type mockCaller struct {
	mu       sync.Mutex
	results  map[string]string
	errs     map[string]error
	receipts map[string]string // per-hash results for eth_getTransactionReceipt
	calls    map[string]int
}

func newMockCaller() *mockCaller {
	return &mockCaller{
		results:  make(map[string]string),
		errs:     make(map[string]error),
		receipts: make(map[string]string),
		calls:    make(map[string]int),
	}
}

func (m *mockCaller) Call(ctx context.Context, method string, params []any, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	if err := m.errs[method]; err != nil {
		return err
	}
	result, ok := m.results[method]
	if method == "eth_getTransactionReceipt" {
		result, ok = m.receipts[params[0].(string)]
	}
	if !ok {
		result = "null"
	}
	return json.Unmarshal([]byte(result), out)
}

func (m *mockCaller) BatchCall(ctx context.Context, requests []provider.BatchRequest) ([]provider.BatchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["batch"]++
	out := make([]provider.BatchResponse, len(requests))
	for i, req := range requests {
		if r, ok := m.receipts[req.Params[0].(string)]; ok {
			out[i] = provider.BatchResponse{Result: json.RawMessage(r)}
		} else {
			out[i] = provider.BatchResponse{Result: json.RawMessage("null")}
		}
	}
	return out, nil
}

const (
	hashA    = "0x00000000000000000000000000000000000000000000000000000000000000aa"
	hashB    = "0x00000000000000000000000000000000000000000000000000000000000000bb"
	blockHex = "0x0000000000000000000000000000000000000000000000000000000000000b10"
	parent   = "0x0000000000000000000000000000000000000000000000000000000000000b0f"
	umbra    = "0xfb2dc580eed955b528407b4d36ffafe3da685401"
)

var blockJSON = fmt.Sprintf(`{
	"number": "0x10",
	"hash": %q,
	"parentHash": %q,
	"timestamp": "0x65678900",
	"transactions": [
		{"hash": %q, "from": "0x1111111111111111111111111111111111111111",
		 "to": "0xFB2DC580EED955B528407B4D36FFAFE3DA685401",
		 "value": "0x64", "gasPrice": "0x3", "input": "0xbeb9addf"},
		{"hash": %q, "from": "0x2222222222222222222222222222222222222222",
		 "to": null, "value": "0x0", "gasPrice": "0x3", "input": "0x"}
	]
}`, blockHex, parent, hashA, hashB)

var receiptA = fmt.Sprintf(`{"transactionHash": %q, "status": "0x1", "gasUsed": "0x5208", "effectiveGasPrice": "0x2", "logs": []}`, hashA)
var receiptB = fmt.Sprintf(`{"transactionHash": %q, "status": "0x0", "gasUsed": "0x10", "logs": []}`, hashB)

func TestAdapter_LatestBlock(t *testing.T) {
	m := newMockCaller()
	m.results["eth_blockNumber"] = `"0x12d687"`

	head, err := NewAdapter(1, m, nil).LatestBlock(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if head != 1234567 {
		t.Errorf("expected height 1234567, got %d", head)
	}
}

func TestAdapter_FetchBlock(t *testing.T) {
	m := newMockCaller()
	m.results["eth_getBlockByNumber"] = blockJSON
	m.results["eth_getBlockReceipts"] = "[" + receiptA + "," + receiptB + "]"

	block, events, err := NewAdapter(1, m, nil).FetchBlock(context.Background(), 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if block.Number != 16 || block.Hash != blockHex || block.ParentHash != parent {
		t.Errorf("unexpected block %+v", block)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	deposit := events[0]
	if deposit.To == nil || *deposit.To != umbra {
		t.Errorf("expected normalized contract address, got %v", deposit.To)
	}
	if deposit.Value.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("unexpected value %s", deposit.Value)
	}
	if deposit.GasPrice.Cmp(big.NewInt(2)) != 0 {
		t.Errorf("expected effective gas price 2, got %s", deposit.GasPrice)
	}
	if deposit.GasUsed != 21000 || deposit.Status != domain.TxStatusSuccess {
		t.Errorf("unexpected receipt fields %+v", deposit)
	}
	if string(deposit.Data) != "\xbe\xb9\xad\xdf" {
		t.Errorf("unexpected calldata %x", deposit.Data)
	}

	creation := events[1]
	if creation.To != nil {
		t.Errorf("contract creation must have nil To, got %v", *creation.To)
	}
	if creation.Status != domain.TxStatusReverted {
		t.Errorf("expected reverted status, got %s", creation.Status)
	}
	if creation.GasPrice.Cmp(big.NewInt(3)) != 0 {
		t.Errorf("expected legacy gas price 3, got %s", creation.GasPrice)
	}
}

func TestAdapter_FetchBlockNotFound(t *testing.T) {
	m := newMockCaller()
	block, events, err := NewAdapter(1, m, nil).FetchBlock(context.Background(), 99)
	if err != nil || block != nil || events != nil {
		t.Errorf("expected nil block, got %v %v %v", block, events, err)
	}
}

func TestAdapter_FallsBackToBatchedReceipts(t *testing.T) {
	m := newMockCaller()
	m.results["eth_getBlockByNumber"] = blockJSON
	m.errs["eth_getBlockReceipts"] = &provider.RPCError{Code: -32601, Message: "the method eth_getBlockReceipts does not exist"}
	m.receipts[hashA] = receiptA
	m.receipts[hashB] = receiptB

	a := NewAdapter(1, m, nil)
	for i := 0; i < 2; i++ {
		_, events, err := a.FetchBlock(context.Background(), 16)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
	}

	if m.calls["eth_getBlockReceipts"] != 1 {
		t.Errorf("unsupported method should be tried once, got %d", m.calls["eth_getBlockReceipts"])
	}
	if m.calls["batch"] != 2 {
		t.Errorf("expected one batch per block, got %d", m.calls["batch"])
	}
}

func TestAdapter_MissingReceiptFailsBlock(t *testing.T) {
	m := newMockCaller()
	m.results["eth_getBlockByNumber"] = blockJSON
	m.errs["eth_getBlockReceipts"] = &provider.RPCError{Code: -32601, Message: "method not found"}
	m.receipts[hashA] = receiptA

	if _, _, err := NewAdapter(1, m, nil).FetchBlock(context.Background(), 16); err == nil {
		t.Fatal("expected error for missing receipt")
	}
}

func TestAdapter_TransientReceiptErrorIsReturned(t *testing.T) {
	m := newMockCaller()
	m.results["eth_getBlockByNumber"] = blockJSON
	m.errs["eth_getBlockReceipts"] = fmt.Errorf("connection reset by peer")

	a := NewAdapter(1, m, nil)
	if _, _, err := a.FetchBlock(context.Background(), 16); err == nil {
		t.Fatal("expected error")
	}
	if !a.blockReceipts.Load() {
		t.Error("transient errors must not disable eth_getBlockReceipts")
	}
}

func TestAdapter_OverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			ID     int    `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		var result string
		switch req.Method {
		case "eth_getBlockByNumber":
			result = blockJSON
		case "eth_getBlockReceipts":
			result = "[" + receiptA + "," + receiptB + "]"
		default:
			result = "null"
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":%s}`, req.ID, strings.TrimSpace(result))
	}))
	defer server.Close()

	client := rpc.NewClient("ETHEREUM_MAINNET", []provider.Provider{
		provider.NewHTTPProvider("local", server.URL, time.Second),
	})
	_, events, err := NewAdapter(1, client, nil).FetchBlock(context.Background(), 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || events[0].Hash != hashA {
		t.Errorf("unexpected events %+v", events)
	}
}
