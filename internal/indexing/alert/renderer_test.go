package alert

import (
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/stealthwatch/internal/core/domain"
)

const (
	sender   domain.Address = "0x1111111111111111111111111111111111111111"
	stealth  domain.Address = "0x2222222222222222222222222222222222222222"
	receiver domain.Address = "0x3333333333333333333333333333333333333333"
	sponsor  domain.Address = "0x4444444444444444444444444444444444444444"
	token    domain.Address = "0x5555555555555555555555555555555555555555"
)

func fixedRenderer() *Renderer {
	r := NewRenderer("", "")
	r.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return r
}

func TestRender_Send(t *testing.T) {
	alerts := fixedRenderer().Render([]domain.CorrelationResult{{
		Kind:           domain.CorrelationSend,
		OriginalSender: sender,
		CurrentSender:  sender,
		Token:          domain.NativeToken,
		Amount:         big.NewInt(100),
		Counterparty:   stealth,
		Network:        1,
		TxHash:         "0xaa",
		BlockNumber:    10,
	}})

	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.AlertID != DefaultSendAlertID || a.Name != "Umbra Send Detected" || a.Severity != domain.SeverityInfo {
		t.Errorf("unexpected header: %s %q %s", a.AlertID, a.Name, a.Severity)
	}
	wantMeta := map[string]string{
		KeyFromAddress:    sender.String(),
		KeyTokenAddress:   domain.NativeToken.String(),
		KeyAmount:         "100",
		KeyStealthAddress: stealth.String(),
	}
	if !reflect.DeepEqual(a.Metadata, wantMeta) {
		t.Errorf("expected metadata %v, got %v", wantMeta, a.Metadata)
	}
	wantAddrs := []string{sender.String(), domain.NativeToken.String(), stealth.String()}
	if !reflect.DeepEqual(a.Addresses, wantAddrs) {
		t.Errorf("expected addresses %v, got %v", wantAddrs, a.Addresses)
	}
	if !a.CreatedAt.Equal(time.Unix(1_700_000_000, 0)) {
		t.Errorf("unexpected created_at %v", a.CreatedAt)
	}
	if _, err := uuid.Parse(a.ID); err != nil {
		t.Errorf("id is not a uuid: %v", err)
	}
}

func TestRender_RelayedReceiveWithOvershoot(t *testing.T) {
	r := NewRenderer("CUSTOM-SEND", "CUSTOM-RECEIVE")
	alerts := r.Render([]domain.CorrelationResult{{
		Kind:           domain.CorrelationReceive,
		OriginalSender: sender,
		CurrentSender:  stealth,
		Token:          token,
		Amount:         big.NewInt(150),
		Counterparty:   receiver,
		Network:        137,
		TxHash:         "0xbb",
		Sponsor:        sponsor,
		Consumed:       big.NewInt(100),
	}})

	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.AlertID != "CUSTOM-RECEIVE" || a.Name != "Umbra Receive Detected" {
		t.Errorf("unexpected header: %s %q", a.AlertID, a.Name)
	}
	for k, want := range map[string]string{
		KeyOriginalSender: sender.String(),
		KeyFromAddress:    stealth.String(),
		KeyReceiveAddress: receiver.String(),
		KeySponsor:        sponsor.String(),
		KeyAmount:         "150",
		KeyConsumedAmount: "100",
	} {
		if got := a.Metadata[k]; got != want {
			t.Errorf("metadata %s: expected %q, got %q", k, want, got)
		}
	}
	wantAddrs := []string{sender.String(), stealth.String(), token.String(), receiver.String()}
	if !reflect.DeepEqual(a.Addresses, wantAddrs) {
		t.Errorf("expected addresses %v, got %v", wantAddrs, a.Addresses)
	}
}

func TestRender_ReceiveWithoutExtras(t *testing.T) {
	alerts := fixedRenderer().Render([]domain.CorrelationResult{{
		Kind:           domain.CorrelationReceive,
		OriginalSender: sender,
		CurrentSender:  stealth,
		Token:          domain.NativeToken,
		Amount:         big.NewInt(60),
		Counterparty:   receiver,
		Consumed:       big.NewInt(60),
	}})

	for _, k := range []string{KeySponsor, KeyConsumedAmount} {
		if v, ok := alerts[0].Metadata[k]; ok {
			t.Errorf("unexpected metadata %s=%q", k, v)
		}
	}
}

func TestRender_StableIDs(t *testing.T) {
	res := []domain.CorrelationResult{
		{Kind: domain.CorrelationReceive, Network: 1, TxHash: "0xcc", Token: token, Counterparty: receiver, Amount: big.NewInt(1)},
		{Kind: domain.CorrelationReceive, Network: 1, TxHash: "0xcc", Token: token, Counterparty: sponsor, Amount: big.NewInt(1)},
	}

	first := fixedRenderer().Render(res)
	second := fixedRenderer().Render(res)
	if first[0].ID != second[0].ID || first[1].ID != second[1].ID {
		t.Error("ids must be stable across renders")
	}
	if first[0].ID == first[1].ID {
		t.Error("ids must differ per counterparty")
	}
}
