package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/infra/rpc/provider"
	"github.com/vietddude/stealthwatch/internal/infra/storage"
)

const (
	checkInterval = 10 * time.Second

	degradedLag = 10
	criticalLag = 100
)

// HeightFetcher fetches the latest block height of a network.
type HeightFetcher interface {
	LatestBlock(ctx context.Context) (uint64, error)
}

// ProviderReporter exposes the health of the RPC providers of a network.
type ProviderReporter interface {
	Health() map[string]provider.HealthStatus
}

// LedgerReporter exposes the number of pending correlation entries.
type LedgerReporter interface {
	PendingCounts() map[domain.NetworkID]int
}

// Target is one network watched by the monitor.
type Target struct {
	Network        domain.NetworkID
	FinalityBlocks uint64
	Heights        HeightFetcher
	Providers      ProviderReporter // optional
}

// Monitor aggregates health status from various system components.
type Monitor struct {
	targets    []Target
	cursors    storage.CursorRepository
	ledger     LedgerReporter
	now        func() time.Time
	lastCheck  time.Time
	lastReport map[string]ChainHealth
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(targets []Target, cursors storage.CursorRepository, ledger LedgerReporter) *Monitor {
	return &Monitor{
		targets:    targets,
		cursors:    cursors,
		ledger:     ledger,
		now:        time.Now,
		lastReport: make(map[string]ChainHealth),
	}
}

// Pending returns the pending ledger entries keyed by network name.
func (m *Monitor) Pending() map[string]int {
	out := make(map[string]int, len(m.targets))
	var counts map[domain.NetworkID]int
	if m.ledger != nil {
		counts = m.ledger.PendingCounts()
	}
	for _, t := range m.targets {
		out[t.Network.Name()] = counts[t.Network]
	}
	return out
}

// CheckHealth performs a health check for all networks. Results are cached
// for a few seconds to avoid spamming RPC.
func (m *Monitor) CheckHealth(ctx context.Context) map[string]ChainHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.now().Sub(m.lastCheck) < checkInterval && len(m.lastReport) > 0 {
		return m.lastReport
	}

	pending := m.Pending()
	report := make(map[string]ChainHealth, len(m.targets))
	for _, t := range m.targets {
		h := m.check(ctx, t)
		h.PendingEntries = pending[h.Name]
		report[h.Name] = h
	}

	m.lastCheck = m.now()
	m.lastReport = report
	return report
}

func (m *Monitor) check(ctx context.Context, t Target) ChainHealth {
	h := ChainHealth{
		Network: t.Network.String(),
		Name:    t.Network.Name(),
		Status:  StatusHealthy,
	}

	if t.Providers != nil {
		h.Providers = t.Providers.Health()
		if len(h.Providers) > 0 && !anyAvailable(h.Providers) {
			h.Status = StatusCritical
			h.Error = "no rpc provider available"
			return h
		}
	}

	latest, err := t.Heights.LatestBlock(ctx)
	if err != nil {
		h.Status = StatusDegraded
		h.Error = err.Error()
		return h
	}
	h.LatestBlock = latest

	c, err := m.cursors.Get(ctx, t.Network)
	if err != nil {
		h.Status = StatusDegraded
		if errors.Is(err, storage.ErrCursorNotFound) {
			h.Error = "cursor not initialized"
		} else {
			h.Error = err.Error()
		}
		return h
	}
	h.CurrentBlock = c.CurrentBlock

	// Lag is measured against the confirmed head; the confirmation depth itself is expected.
	if latest > t.FinalityBlocks && latest-t.FinalityBlocks > c.CurrentBlock {
		h.BlockLag = latest - t.FinalityBlocks - c.CurrentBlock
	}

	switch {
	case h.BlockLag > criticalLag:
		h.Status = StatusCritical
	case h.BlockLag > degradedLag:
		h.Status = StatusDegraded
	}
	return h
}

func anyAvailable(providers map[string]provider.HealthStatus) bool {
	for _, p := range providers {
		if p.Available {
			return true
		}
	}
	return false
}
