package emitter

import (
	"context"
	"errors"
	"fmt"

	"github.com/vietddude/stealthwatch/internal/core/domain"
	"github.com/vietddude/stealthwatch/internal/indexing/metrics"
)

// Emitter delivers rendered correlation alerts to a sink.
type Emitter interface {
	// Name identifies the sink in logs and metrics
	Name() string

	// Emit sends a batch of alerts, in order
	Emit(ctx context.Context, alerts []*domain.Alert) error

	// Close closes the emitter connection
	Close() error
}

// Multi fans a batch out to every emitter. A failing sink does not stop
// delivery to the others; the errors are joined.
type Multi struct {
	emitters []Emitter
}

// NewMulti creates a fan-out emitter.
func NewMulti(emitters ...Emitter) *Multi {
	return &Multi{emitters: emitters}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Emit(ctx context.Context, alerts []*domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	var errs []error
	for _, e := range m.emitters {
		if err := e.Emit(ctx, alerts); err != nil {
			metrics.EmitErrors.WithLabelValues(e.Name()).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		metrics.AlertsEmitted.WithLabelValues(e.Name()).Add(float64(len(alerts)))
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Names lists the wrapped emitters.
func (m *Multi) Names() []string {
	out := make([]string, len(m.emitters))
	for i, e := range m.emitters {
		out[i] = e.Name()
	}
	return out
}
