package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/indexing/metrics"
	"github.com/vietddude/stealthwatch/internal/indexing/throttle"
	"github.com/vietddude/stealthwatch/internal/infra/storage"
)

const defaultBatchSize = 50

// Pipeline implements the Indexer interface
type Pipeline struct {
	cfg      Config
	log      *slog.Logger
	label    string
	heads    throttle.HeadSource
	pacer    *throttle.Pacer
	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once

	mu     sync.RWMutex
	cursor *domain.Cursor
	latest uint64
}

// NewPipeline creates a new indexing pipeline
func NewPipeline(cfg Config) *Pipeline {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	heads := cfg.Heads
	if heads == nil {
		heads = cfg.ChainAdapter
	}
	return &Pipeline{
		cfg:   cfg,
		log:   log.With("network", cfg.Network.Name()),
		label: cfg.Network.String(),
		heads: heads,
		pacer: throttle.NewPacer(cfg.ScanInterval, cfg.CatchupInterval, int64(cfg.BatchSize)),
		stop:  make(chan struct{}),
	}
}

// Start runs the indexing loop until ctx is cancelled or Stop is called.
func (p *Pipeline) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("pipeline already running")
	}
	defer p.running.Store(false)

	p.log.Info("Pipeline started",
		"scan_interval", p.cfg.ScanInterval,
		"catchup_interval", p.cfg.CatchupInterval,
		"finality_blocks", p.cfg.FinalityBlocks,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stop:
			return nil
		case <-timer.C:
		}

		if err := p.scan(ctx); err != nil && ctx.Err() == nil {
			p.log.Error("Scan failed", "error", err)
		}
		timer.Reset(p.pacer.Interval(p.confirmedLag()))
	}
}

// Stop stops the pipeline
func (p *Pipeline) Stop() error {
	p.stopOnce.Do(func() { close(p.stop) })
	return nil
}

// GetStatus returns the current status
func (p *Pipeline) GetStatus() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Status{
		Network:     p.cfg.Network,
		Name:        p.cfg.Network.Name(),
		LatestBlock: p.latest,
		Running:     p.running.Load(),
	}
	if p.cursor != nil {
		s.CurrentBlock = p.cursor.CurrentBlock
		s.Lag = int64(p.latest) - int64(p.cursor.CurrentBlock)
	}
	return s
}

// confirmedLag is the number of confirmed blocks not yet processed.
func (p *Pipeline) confirmedLag() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cursor == nil {
		return 0
	}
	head, ok := confirmedHead(p.latest, p.cfg.FinalityBlocks)
	if !ok {
		return 0
	}
	return int64(head) - int64(p.cursor.CurrentBlock)
}

// scan processes every confirmed block up to the batch size.
func (p *Pipeline) scan(ctx context.Context) error {
	latest, err := p.heads.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("failed to get latest block: %w", err)
	}
	p.mu.Lock()
	p.latest = latest
	p.mu.Unlock()
	metrics.ChainLatestBlock.WithLabelValues(p.label).Set(float64(latest))

	cursor, err := p.position(ctx, latest)
	if err != nil {
		return err
	}

	from, to, ok := nextRange(cursor.CurrentBlock, latest, p.cfg.FinalityBlocks, p.cfg.BatchSize)
	if !ok {
		return nil
	}

	for n := from; n <= to; n++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		done, err := p.processBlock(ctx, n)
		if err != nil {
			return fmt.Errorf("block %d: %w", n, err)
		}
		if !done {
			return nil
		}
	}
	return nil
}

// position returns the in-memory cursor, loading or initializing it on first use.
func (p *Pipeline) position(ctx context.Context, latest uint64) (*domain.Cursor, error) {
	p.mu.RLock()
	c := p.cursor
	p.mu.RUnlock()
	if c != nil {
		return c, nil
	}

	c, err := p.cfg.CursorRepo.Get(ctx, p.cfg.Network)
	switch {
	case err == nil:
		p.log.Info("Resuming from cursor", "block", c.CurrentBlock)
	case errors.Is(err, storage.ErrCursorNotFound):
		c = &domain.Cursor{Network: p.cfg.Network}
		if p.cfg.StartBlock > 0 {
			c.CurrentBlock = p.cfg.StartBlock - 1
		} else if head, ok := confirmedHead(latest, p.cfg.FinalityBlocks); ok {
			c.CurrentBlock = head
		}
		p.log.Info("Initialized cursor", "block", c.CurrentBlock)
	default:
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}

	p.mu.Lock()
	p.cursor = c
	p.mu.Unlock()
	return c, nil
}

// processBlock correlates one block. It reports false when the block is not
// available yet. Once the correlator has seen a block the cursor moves past
// it, even when emitting or persisting the cursor fails, so no block is fed
// twice.
func (p *Pipeline) processBlock(ctx context.Context, number uint64) (bool, error) {
	block, events, err := p.cfg.ChainAdapter.FetchBlock(ctx, number)
	if err != nil {
		return false, fmt.Errorf("failed to fetch block: %w", err)
	}
	if block == nil {
		return false, nil
	}

	p.mu.RLock()
	prev := p.cursor
	p.mu.RUnlock()
	if prev != nil && prev.CurrentBlockHash != "" && prev.CurrentBlock+1 == block.Number && prev.CurrentBlockHash != block.ParentHash {
		p.log.Warn("Parent hash mismatch, chain reorganized below the confirmation depth",
			"block", block.Number,
			"parent_hash", block.ParentHash,
			"cursor_hash", prev.CurrentBlockHash,
		)
	}

	var alerts []*domain.Alert
	for _, ev := range events {
		if ev.Status == domain.TxStatusReverted {
			continue
		}
		res, err := p.cfg.Correlator.Process(ctx, ev)
		if err != nil {
			metrics.EventErrors.WithLabelValues(p.label).Inc()
			p.log.Warn("Failed to correlate transaction", "tx", ev.Hash, "block", number, "error", err)
			continue
		}
		metrics.EventsProcessed.WithLabelValues(p.label).Inc()
		if len(res) == 0 {
			continue
		}
		p.record(res)
		if p.cfg.Renderer != nil {
			alerts = append(alerts, p.cfg.Renderer.Render(res)...)
		}
	}

	if len(alerts) > 0 && p.cfg.Emitter != nil {
		if err := p.cfg.Emitter.Emit(ctx, alerts); err != nil {
			p.log.Error("Failed to emit alerts", "block", number, "alerts", len(alerts), "error", err)
		}
	}

	next := &domain.Cursor{
		Network:          p.cfg.Network,
		CurrentBlock:     block.Number,
		CurrentBlockHash: block.Hash,
		UpdatedAt:        time.Now(),
	}
	p.mu.Lock()
	p.cursor = next
	p.mu.Unlock()

	metrics.BlocksProcessed.WithLabelValues(p.label).Inc()
	metrics.IndexerLatestBlock.WithLabelValues(p.label).Set(float64(block.Number))
	metrics.LedgerPending.WithLabelValues(p.label).Set(float64(p.cfg.Correlator.PendingCounts()[p.cfg.Network]))

	if err := p.cfg.CursorRepo.Save(ctx, next); err != nil {
		return false, fmt.Errorf("failed to save cursor: %w", err)
	}
	return true, nil
}

func (p *Pipeline) record(results []domain.CorrelationResult) {
	for i := range results {
		r := &results[i]
		metrics.Correlations.WithLabelValues(p.label, string(r.Kind)).Inc()
		if r.Consumed != nil && r.Amount != nil && r.Amount.Cmp(r.Consumed) > 0 {
			metrics.Overshoots.WithLabelValues(p.label).Inc()
			p.log.Debug("Withdrawal exceeds pending balance",
				"tx", r.TxHash,
				"original_sender", r.OriginalSender,
				"pending", r.Consumed,
				"observed", r.Amount,
			)
		}
	}
}
