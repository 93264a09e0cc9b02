package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/stealthwatch/internal/indexing/metrics"
	"github.com/vietddude/stealthwatch/internal/infra/storage"
)

// Pruner deletes stored alerts older than the retention period.
type Pruner struct {
	repo      storage.AlertRepository
	retention time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(repo storage.AlertRepository, retention time.Duration, log *slog.Logger) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{
		repo:      repo,
		retention: retention,
		log:       log.With("component", "pruner"),
		now:       time.Now,
	}
}

// Start runs the pruner loop until ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) error {
	if p.retention <= 0 {
		return nil
	}

	// 10% of the retention period, between one minute and one hour
	interval := min(p.retention/10, time.Hour)
	interval = max(interval, time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.log.Error("Failed to prune alerts", "cutoff", cutoff, "error", err)
		return
	}
	metrics.AlertsPruned.Add(float64(n))
	if n > 0 {
		p.log.Info("Pruned alerts", "count", n, "cutoff", cutoff)
	}
}
