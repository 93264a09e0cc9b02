package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/vietddude/stealthwatch/internal/core/domain"
)

// LogEmitter writes alerts to the structured log.
type LogEmitter struct {
	log *slog.Logger
}

func NewLogEmitter(log *slog.Logger) *LogEmitter {
	if log == nil {
		log = slog.Default()
	}
	return &LogEmitter{log: log}
}

func (e *LogEmitter) Name() string { return "log" }

func (e *LogEmitter) Emit(ctx context.Context, alerts []*domain.Alert) error {
	for _, a := range alerts {
		attrs := []any{
			"id", a.ID,
			"alert_id", a.AlertID,
			"network", a.Network.Name(),
			"tx", a.TxHash,
			"block", a.BlockNumber,
		}
		for _, k := range sortedKeys(a.Metadata) {
			attrs = append(attrs, k, a.Metadata[k])
		}
		e.log.InfoContext(ctx, a.Name, attrs...)
	}
	return nil
}

func (e *LogEmitter) Close() error { return nil }

// WriterEmitter writes alerts as JSON lines, one alert per line.
type WriterEmitter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewWriterEmitter(w io.Writer) *WriterEmitter {
	return &WriterEmitter{enc: json.NewEncoder(w)}
}

func (e *WriterEmitter) Name() string { return "writer" }

func (e *WriterEmitter) Emit(ctx context.Context, alerts []*domain.Alert) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range alerts {
		if err := e.enc.Encode(a); err != nil {
			return fmt.Errorf("write alert %s: %w", a.ID, err)
		}
	}
	return nil
}

func (e *WriterEmitter) Close() error { return nil }
