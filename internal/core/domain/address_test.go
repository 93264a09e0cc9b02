package domain

import (
	"math/big"
	"testing"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want Address
	}{
		{"0xFB2DC580EED955B528407B4D36FFAFE3DA685401", "0xfb2dc580eed955b528407b4d36ffafe3da685401"},
		{" 0xfb2dc580eed955b528407b4d36ffafe3da685401 ", "0xfb2dc580eed955b528407b4d36ffafe3da685401"},
		{"0x0", NativeToken},
		{"abc", "0x0000000000000000000000000000000000000abc"},
	}
	for _, tt := range tests {
		if got := NormalizeAddress(tt.in); got != tt.want {
			t.Errorf("NormalizeAddress(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestAddressFromWord(t *testing.T) {
	word := make([]byte, 32)
	word[12] = 0xab
	word[31] = 0x01
	if got := AddressFromWord(word); got != "0xab00000000000000000000000000000000000001" {
		t.Errorf("unexpected address %s", got)
	}
	if !NormalizeAddress("0x00").IsZero() {
		t.Error("expected zero address")
	}
}

func TestNetworkName(t *testing.T) {
	if NetworkID(1).Name() != "ETHEREUM_MAINNET" {
		t.Errorf("unexpected name %s", NetworkID(1).Name())
	}
	if NetworkID(31337).Name() != "31337" {
		t.Errorf("unknown networks should fall back to the decimal id")
	}
}

func TestTxEventFee(t *testing.T) {
	ev := &TxEvent{GasPrice: big.NewInt(2), GasUsed: 21000}
	if ev.Fee().Cmp(big.NewInt(42000)) != 0 {
		t.Errorf("unexpected fee %s", ev.Fee())
	}
	if (&TxEvent{}).Fee().Sign() != 0 {
		t.Error("expected zero fee without gas price")
	}
}
