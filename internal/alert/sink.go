package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/observability"
)

// Sink receives alerts as they enter the ALERTED state.
type Sink interface {
	Publish(ctx context.Context, a domain.Alert) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, a domain.Alert) error

func (f SinkFunc) Publish(ctx context.Context, a domain.Alert) error { return f(ctx, a) }

// NamedSink labels a sink for metrics and errors.
type NamedSink struct {
	Name string
	Sink Sink
}

// MultiSink publishes to every sink in order. A failing sink is counted and
// reported in the joined error; the remaining sinks still run.
type MultiSink struct {
	sinks   []NamedSink
	metrics *observability.Metrics
}

// NewMultiSink fans out to sinks.
func NewMultiSink(metrics *observability.Metrics, sinks ...NamedSink) *MultiSink {
	return &MultiSink{sinks: sinks, metrics: metrics}
}

func (m *MultiSink) Publish(ctx context.Context, a domain.Alert) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Publish(ctx, a); err != nil {
			m.metrics.SinkErrors.WithLabelValues(s.Name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
