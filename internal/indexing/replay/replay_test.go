package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/correlation"
	"github.com/vietddude/stealthwatch/internal/indexing/alert"
	"github.com/vietddude/stealthwatch/internal/indexing/emitter"
)

const (
	depositor = "0x000000000000000000000000000000000000aaaa"
	stealth   = "0x0000000000000000000000000000000000005555"
	recipient = "0x000000000000000000000000000000000000bbbb"
	sponsor   = "0x000000000000000000000000000000000000cccc"
	token     = "0x0000000000000000000000000000000000007777"
	umbra     = "0xfb2dc580eed955b528407b4d36ffafe3da685401"
)

func word(addr string) string {
	return strings.Repeat("0", 24) + strings.TrimPrefix(addr, "0x")
}

func input(sel correlation.Selector, args ...string) string {
	s := sel.String()
	for _, a := range args {
		s += word(a)
	}
	return s
}

func line(t *testing.T, r Record) string {
	t.Helper()
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	return string(b)
}

func replayInput(t *testing.T) string {
	deposit := Record{
		Network: 1, Hash: "0xDEP", BlockNumber: 10, From: depositor, To: umbra,
		Value: "0", GasPrice: "0x3b9aca00", GasUsed: 80000,
		Input: input(correlation.SelectorSendToken, stealth, token, token, token),
		TokenTransfers: []Transfer{
			{Token: token, From: depositor, To: umbra, Amount: "600"},
			{Token: token, From: depositor, To: umbra, Amount: "400"},
		},
	}
	reverted := Record{
		Network: 1, Hash: "0xrev", BlockNumber: 11, From: stealth, To: recipient,
		Value: "1", Status: domain.TxStatusReverted,
	}
	relayed := Record{
		Network: 1, Hash: "0xbehalf", BlockNumber: 12, From: sponsor, To: umbra,
		Value: "0", GasPrice: "1", GasUsed: 90000,
		Input: input(correlation.SelectorWithdrawTokenOnBehalf, stealth, recipient, token, sponsor, domain.NativeToken.String()),
		TokenTransfers: []Transfer{
			{Token: token, From: umbra, To: recipient, Amount: "0x3b6"}, // 950
			{Token: token, From: umbra, To: sponsor, Amount: "50"},
		},
	}

	return strings.Join([]string{
		"# token deposit, reverted sweep, relayed withdrawal",
		line(t, deposit),
		"",
		line(t, reverted),
		line(t, relayed),
	}, "\n")
}

func TestReplayer_Run(t *testing.T) {
	var out bytes.Buffer
	r := New(correlation.DefaultProtocol(1), alert.NewRenderer("", ""), emitter.NewWriterEmitter(&out), nil)

	sum, err := r.Run(context.Background(), strings.NewReader(replayInput(t)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Events != 2 || sum.Skipped != 1 || sum.Errors != 0 || sum.Alerts != 3 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if want := map[string]int{"send": 1, "receive": 2}; !reflect.DeepEqual(sum.ByKind, want) {
		t.Errorf("expected by kind %v, got %v", want, sum.ByKind)
	}
	if n := sum.Pending["ETHEREUM_MAINNET"]; n != 0 {
		t.Errorf("expected nothing pending, got %d", n)
	}

	var alerts []domain.Alert
	dec := json.NewDecoder(&out)
	for dec.More() {
		var a domain.Alert
		if err := dec.Decode(&a); err != nil {
			t.Fatalf("decode alert: %v", err)
		}
		alerts = append(alerts, a)
	}
	if len(alerts) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(alerts))
	}

	send := alerts[0]
	if send.AlertID != alert.DefaultSendAlertID || send.TxHash != "0xdep" {
		t.Errorf("unexpected send alert %s %s", send.AlertID, send.TxHash)
	}
	if got := send.Metadata[alert.KeyAmount]; got != "1000" {
		t.Errorf("duplicate transfers are summed, got amount %s", got)
	}
	if send.Metadata[alert.KeyStealthAddress] != stealth || send.Metadata[alert.KeyTokenAddress] != token {
		t.Errorf("unexpected send metadata %v", send.Metadata)
	}

	for i, want := range []struct{ to, amount string }{{recipient, "950"}, {sponsor, "50"}} {
		a := alerts[i+1]
		if a.AlertID != alert.DefaultReceiveAlertID {
			t.Errorf("alert %d: unexpected id %s", i+1, a.AlertID)
		}
		for k, v := range map[string]string{
			alert.KeyOriginalSender: depositor,
			alert.KeyFromAddress:    stealth,
			alert.KeyReceiveAddress: want.to,
			alert.KeyAmount:         want.amount,
			alert.KeySponsor:        sponsor,
		} {
			if a.Metadata[k] != v {
				t.Errorf("alert %d: metadata %s expected %q, got %q", i+1, k, v, a.Metadata[k])
			}
		}
	}
}

func TestReplayer_PendingLeftover(t *testing.T) {
	deposit := Record{
		Network: 10, Hash: "0xeth", From: depositor, To: umbra, Value: "500",
		Input: input(correlation.SelectorSendEth, stealth, token, token, token),
	}
	r := New(correlation.DefaultProtocol(10), alert.NewRenderer("", ""), emitter.NewWriterEmitter(&bytes.Buffer{}), nil)

	sum, err := r.Run(context.Background(), strings.NewReader(line(t, deposit)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.ByKind["send"] != 1 || sum.Pending["OPTIMISM_MAINNET"] != 1 {
		t.Errorf("expected one send left pending, got %+v", sum)
	}
}

func TestReplayer_EngineErrorsAreCounted(t *testing.T) {
	short := Record{
		Network: 1, Hash: "0xshort", From: depositor, To: umbra, Value: "1",
		Input: correlation.SelectorSendEth.String() + "00",
	}
	r := New(correlation.DefaultProtocol(1), alert.NewRenderer("", ""), emitter.NewWriterEmitter(&bytes.Buffer{}), nil)

	sum, err := r.Run(context.Background(), strings.NewReader(line(t, short)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Errors != 1 || sum.Alerts != 0 {
		t.Errorf("expected 1 error and no alerts, got %+v", sum)
	}
}

func TestReplayer_MalformedLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"invalid json", "{", "line 1"},
		{"invalid amount", `{"network":1,"hash":"0x1","value":"ten"}`, "value: invalid amount"},
		{"invalid input", `{"network":1,"hash":"0x1","input":"0xzz"}`, "input"},
		{"invalid transfer", `{"network":1,"hash":"0x1","token_transfers":[{"amount":"x"}]}`, "token_transfers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(correlation.DefaultProtocol(1), alert.NewRenderer("", ""), emitter.NewWriterEmitter(&bytes.Buffer{}), nil)
			_, err := r.Run(context.Background(), strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	for in, want := range map[string]string{"": "0", "42": "42", "0x2a": "42", " 7 ": "7"} {
		got, err := parseAmount(in)
		if err != nil {
			t.Errorf("parseAmount(%q): %v", in, err)
			continue
		}
		if got.String() != want {
			t.Errorf("parseAmount(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := parseAmount("0x"); err == nil {
		t.Error("expected error for bare 0x")
	}
}
