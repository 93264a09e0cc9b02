// Package health provides system health monitoring and status reporting.
package health

import "github.com/vietddude/stealthwatch/internal/infra/rpc/provider"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ChainHealth contains health metrics for one watched network.
type ChainHealth struct {
	Network        string                           `json:"network"`
	Name           string                           `json:"name"`
	Status         SystemStatus                     `json:"status"`
	CurrentBlock   uint64                           `json:"current_block"`
	LatestBlock    uint64                           `json:"latest_block"`
	BlockLag       uint64                           `json:"block_lag"`
	PendingEntries int                              `json:"pending_entries"`
	Providers      map[string]provider.HealthStatus `json:"providers,omitempty"`
	Error          string                           `json:"error,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus           `json:"system_status"`
	Chains       map[string]ChainHealth `json:"chains"`
}

// Aggregate returns the worst status of the report.
func Aggregate(chains map[string]ChainHealth) SystemStatus {
	status := StatusHealthy
	for _, chain := range chains {
		if chain.Status == StatusCritical {
			return StatusCritical
		}
		if chain.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}
