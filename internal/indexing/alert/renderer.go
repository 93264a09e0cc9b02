// Package alert renders correlation results into transportable alerts.
package alert

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/stealthwatch/internal/core/domain"
)

const (
	DefaultSendAlertID    = "UMBRA-SEND"
	DefaultReceiveAlertID = "UMBRA-RECEIVE"

	sendName    = "Umbra Send Detected"
	receiveName = "Umbra Receive Detected"
)

// Metadata keys.
const (
	KeyOriginalSender = "originalSender"
	KeyFromAddress    = "fromAddress"
	KeyTokenAddress   = "tokenAddress"
	KeyAmount         = "amount"
	KeyStealthAddress = "stealthAddress"
	KeyReceiveAddress = "receiveAddress"
	KeySponsor        = "sponsor"
	KeyConsumedAmount = "consumedAmount"
)

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/vietddude/stealthwatch/alerts"))

// Renderer turns correlation results into alerts.
type Renderer struct {
	sendID    string
	receiveID string
	now       func() time.Time
}

// NewRenderer creates a renderer with the given alert ids; empty ids fall
// back to the defaults.
func NewRenderer(sendID, receiveID string) *Renderer {
	if sendID == "" {
		sendID = DefaultSendAlertID
	}
	if receiveID == "" {
		receiveID = DefaultReceiveAlertID
	}
	return &Renderer{sendID: sendID, receiveID: receiveID, now: time.Now}
}

// Render converts the results of one event, preserving order.
func (r *Renderer) Render(results []domain.CorrelationResult) []*domain.Alert {
	alerts := make([]*domain.Alert, 0, len(results))
	for i := range results {
		alerts = append(alerts, r.render(&results[i], i))
	}
	return alerts
}

func (r *Renderer) render(res *domain.CorrelationResult, index int) *domain.Alert {
	a := &domain.Alert{
		ID:          alertID(res, index),
		Severity:    domain.SeverityInfo,
		Network:     res.Network,
		TxHash:      res.TxHash,
		BlockNumber: res.BlockNumber,
		CreatedAt:   r.now().UTC(),
		Metadata: map[string]string{
			KeyFromAddress:  res.CurrentSender.String(),
			KeyTokenAddress: res.Token.String(),
			KeyAmount:       amountString(res),
		},
	}

	switch res.Kind {
	case domain.CorrelationSend:
		a.AlertID = r.sendID
		a.Name = sendName
		a.Description = sendName
		a.Metadata[KeyStealthAddress] = res.Counterparty.String()
		a.Addresses = addresses(res.CurrentSender, res.Token, res.Counterparty)
	default:
		a.AlertID = r.receiveID
		a.Name = receiveName
		a.Description = receiveName
		a.Metadata[KeyOriginalSender] = res.OriginalSender.String()
		a.Metadata[KeyReceiveAddress] = res.Counterparty.String()
		if res.Sponsor != "" {
			a.Metadata[KeySponsor] = res.Sponsor.String()
		}
		if res.Consumed != nil && res.Amount != nil && res.Consumed.Cmp(res.Amount) != 0 {
			a.Metadata[KeyConsumedAmount] = res.Consumed.String()
		}
		a.Addresses = addresses(res.OriginalSender, res.CurrentSender, res.Token, res.Counterparty)
	}
	return a
}

func amountString(res *domain.CorrelationResult) string {
	if res.Amount == nil {
		return "0"
	}
	return res.Amount.String()
}

// addresses de-duplicates while keeping first-seen order.
func addresses(addrs ...domain.Address) []string {
	out := make([]string, 0, len(addrs))
	seen := make(map[domain.Address]struct{}, len(addrs))
	for _, a := range addrs {
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a.String())
	}
	return out
}

// alertID is stable for a given result so replays of the same block do not
// produce new alerts downstream.
func alertID(res *domain.CorrelationResult, index int) string {
	name := fmt.Sprintf("%d/%s/%s/%d/%s/%s",
		res.Network, res.TxHash, res.Kind, index, res.Token, res.Counterparty)
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}
