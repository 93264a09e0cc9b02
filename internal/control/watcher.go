package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/stealthwatch/internal/core/config"
	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/core/worker"
	"github.com/vietddude/stealthwatch/internal/correlation"
	"github.com/vietddude/stealthwatch/internal/indexing/alert"
	"github.com/vietddude/stealthwatch/internal/indexing/emitter"
	"github.com/vietddude/stealthwatch/internal/indexing/health"
	"github.com/vietddude/stealthwatch/internal/indexing/indexer"
	"github.com/vietddude/stealthwatch/internal/indexing/throttle"
	"github.com/vietddude/stealthwatch/internal/infra/chain/evm"
	"github.com/vietddude/stealthwatch/internal/infra/rpc"
	"github.com/vietddude/stealthwatch/internal/infra/rpc/provider"
)

// Watcher is the main application struct that manages the indexer lifecycle.
type Watcher struct {
	cfg          *config.AppConfig
	indexers     map[domain.NetworkID]indexer.Indexer
	clients      map[domain.NetworkID]*rpc.Client
	engine       *correlation.Engine
	emitter      *emitter.Multi
	store        *Storage
	healthMon    *health.Monitor
	healthServer *health.Server
	log          *slog.Logger

	group  *errgroup.Group
	cancel context.CancelFunc
	once   sync.Once
}

// NewWatcher creates a new Watcher instance with all dependencies initialized.
func NewWatcher(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	protocol, err := cfg.CorrelationProtocol()
	if err != nil {
		return nil, err
	}

	// 1. Storage
	store, err := OpenStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	// 2. Emitters
	emitters := []emitter.Emitter{emitter.NewLogEmitter(log)}
	if store.Alerts != nil {
		emitters = append(emitters, emitter.NewRepoEmitter(store.Alerts))
	}
	if store.Redis != nil {
		emitters = append(emitters, emitter.NewRedisEmitter(store.Redis))
	}
	if cfg.Kafka.Enabled() {
		k, err := emitter.NewKafkaEmitter(cfg.Kafka)
		if err != nil {
			store.Close()
			return nil, err
		}
		emitters = append(emitters, k)
	}
	multi := emitter.NewMulti(emitters...)
	log.Info("Alert emitters ready", "emitters", multi.Names())

	// 3. RPC clients and chain adapters
	clients := make(map[domain.NetworkID]*rpc.Client, len(cfg.Networks))
	adapters := make(map[domain.NetworkID]*evm.Adapter, len(cfg.Networks))
	extractors := make(evm.Extractors, len(cfg.Networks))
	for _, n := range cfg.Networks {
		providers := make([]provider.Provider, 0, len(n.Providers))
		for _, p := range n.Providers {
			providers = append(providers, provider.NewHTTPProvider(p.Name, p.URL, p.Timeout))
		}
		client := rpc.NewClient(n.Name, providers, rpc.WithLogger(log))
		adapter := evm.NewAdapter(n.ID, client, log)

		clients[n.ID] = client
		adapters[n.ID] = adapter
		extractors[n.ID] = evm.NewExtractor(adapter, n.TraceInternal)
	}

	// 4. Correlation engine shared by every network
	engine := correlation.NewEngine(protocol, extractors, correlation.WithLogger(log))
	renderer := alert.NewRenderer(cfg.Protocol.SendAlertID, cfg.Protocol.ReceiveAlertID)

	// 5. Pipelines
	indexers := make(map[domain.NetworkID]indexer.Indexer, len(cfg.Networks))
	targets := make([]health.Target, 0, len(cfg.Networks))
	for _, n := range cfg.Networks {
		heads := throttle.NewHeadCache(adapters[n.ID], n.HeadCacheTTL)
		indexers[n.ID] = indexer.NewPipeline(indexer.Config{
			Network:         n.ID,
			ChainAdapter:    adapters[n.ID],
			Heads:           heads,
			Correlator:      engine,
			Renderer:        renderer,
			Emitter:         multi,
			CursorRepo:      store.Cursors,
			ScanInterval:    n.ScanInterval,
			CatchupInterval: n.CatchupInterval,
			FinalityBlocks:  n.FinalityBlocks,
			StartBlock:      n.StartBlock,
			Logger:          log,
		})
		targets = append(targets, health.Target{
			Network:        n.ID,
			FinalityBlocks: n.FinalityBlocks,
			Heights:        heads,
			Providers:      clients[n.ID],
		})
		log.Info("Network configured",
			"network", n.Name,
			"chain_id", n.ID,
			"contract", protocol.Contracts[n.ID],
			"providers", len(n.Providers),
			"trace_internal", n.TraceInternal,
		)
	}

	// 6. Health
	healthMon := health.NewMonitor(targets, store.Cursors, engine)
	healthServer := health.NewServer(healthMon, cfg.Server.Port)
	if store.Alerts != nil {
		healthServer.WithAlerts(store.Alerts)
	}

	return &Watcher{
		cfg:          cfg,
		indexers:     indexers,
		clients:      clients,
		engine:       engine,
		emitter:      multi,
		store:        store,
		healthMon:    healthMon,
		healthServer: healthServer,
		log:          log,
	}, nil
}

// Start starts the watcher and all its components. It returns immediately;
// use Wait to block until every pipeline has exited.
func (w *Watcher) Start(ctx context.Context) error {
	if w.group != nil {
		return fmt.Errorf("watcher already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	w.group = g
	w.cancel = cancel

	go func() {
		if err := w.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.log.Error("Health server failed", "error", err)
		}
	}()

	if w.store.DB != nil {
		w.store.DB.StartMetricsCollector(ctx)
	}

	if w.store.Alerts != nil && w.cfg.Database.AlertRetention > 0 {
		pruner := worker.NewPruner(w.store.Alerts, w.cfg.Database.AlertRetention, w.log)
		g.Go(func() error { return pruner.Start(ctx) })
	}

	for id, idx := range w.indexers {
		id, idx := id, idx // per-iteration copies (go < 1.22 loop semantics)
		w.log.Info("Starting indexer", "network", id.Name())
		g.Go(func() error {
			if err := idx.Start(ctx); err != nil {
				return fmt.Errorf("indexer %s: %w", id.Name(), err)
			}
			return nil
		})
	}
	return nil
}

// Wait blocks until all pipelines have stopped.
func (w *Watcher) Wait() error {
	if w.group == nil {
		return nil
	}
	return w.group.Wait()
}

// Status returns a snapshot of every pipeline.
func (w *Watcher) Status() []indexer.Status {
	out := make([]indexer.Status, 0, len(w.indexers))
	for _, n := range w.cfg.Networks {
		if idx, ok := w.indexers[n.ID]; ok {
			out = append(out, idx.GetStatus())
		}
	}
	return out
}

// Stop stops the watcher and releases its resources. Pending correlation
// state is discarded.
func (w *Watcher) Stop(ctx context.Context) error {
	var err error
	w.once.Do(func() {
		w.log.Info("Stopping Watcher...")

		for _, idx := range w.indexers {
			idx.Stop()
		}
		if w.cancel != nil {
			w.cancel()
		}
		if waitErr := w.Wait(); waitErr != nil {
			w.log.Warn("Indexer exited with error", "error", waitErr)
		}

		if cerr := w.emitter.Close(); cerr != nil {
			w.log.Warn("Failed to close emitters", "error", cerr)
		}
		w.engine.Close()
		for _, c := range w.clients {
			c.Close()
		}
		if cerr := w.store.Close(); cerr != nil {
			w.log.Warn("Failed to close storage", "error", cerr)
		}

		err = w.healthServer.Stop(ctx)
	})
	return err
}
