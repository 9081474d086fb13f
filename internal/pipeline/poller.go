// Package pipeline runs background seismic ingestion: poll USGS, feed new
// events to the alert evaluator, expire stale alerts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geohazard-service/internal/alert"
	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/observability"
)

// EventSource lists recent earthquakes.
type EventSource interface {
	FetchEvents(ctx context.Context, q domain.EarthquakeQuery) ([]domain.EarthquakeEvent, error)
}

// Evaluator consumes polled events and owns alert expiry.
type Evaluator interface {
	EvaluateSeismic(ctx context.Context, events []domain.EarthquakeEvent) alert.BatchResult
	Expire(ctx context.Context) int
}

// Config tunes the poll loop.
type Config struct {
	Interval     time.Duration
	Lookback     time.Duration
	MinMagnitude float64
	Limit        int
}

// Retry backoff after a failed poll: start at 1s, double each retry, cap at
// the poll interval.
const initialBackoff = time.Second

// SeismicPoller polls on a fixed interval and evaluates each batch
// synchronously, so a slow evaluation delays the next poll instead of
// overlapping it.
type SeismicPoller struct {
	source    EventSource
	evaluator Evaluator
	cfg       Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	ready     atomic.Bool
}

// NewSeismicPoller creates a poller. A nil clock uses real time.
func NewSeismicPoller(source EventSource, evaluator Evaluator, cfg Config, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *SeismicPoller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 500
	}
	return &SeismicPoller{
		source:    source,
		evaluator: evaluator,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
	}
}

// CheckReadiness returns nil once one poll has completed.
func (p *SeismicPoller) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("seismic poller has not completed a poll yet")
	}
	return nil
}

// Run polls immediately and then every interval until ctx is cancelled.
func (p *SeismicPoller) Run(ctx context.Context) error {
	p.logger.Info("seismic poller started",
		"interval", p.cfg.Interval,
		"lookback", p.cfg.Lookback,
		"min_magnitude", p.cfg.MinMagnitude,
	)
	p.metrics.PollerRunning.Set(1)
	defer p.metrics.PollerRunning.Set(0)

	backoff := initialBackoff
	for {
		wait := p.cfg.Interval
		if err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("seismic poller stopping", "reason", ctx.Err())
				return nil
			}
			p.logger.Error("seismic poll failed", "error", err, "retry_in", backoff)
			wait = backoff
			backoff = nextBackoff(backoff, p.cfg.Interval)
		} else {
			backoff = initialBackoff
		}

		if !sleepWithContext(ctx, p.clock, wait) {
			p.logger.Info("seismic poller stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// Poll runs one fetch-evaluate-expire cycle. Expiry runs even when the
// fetch fails so retention holds through a USGS outage.
func (p *SeismicPoller) Poll(ctx context.Context) error {
	start := p.clock.Now()

	events, err := p.source.FetchEvents(ctx, domain.EarthquakeQuery{
		Since:        start.Add(-p.cfg.Lookback),
		MinMagnitude: p.cfg.MinMagnitude,
		Limit:        p.cfg.Limit,
	})
	if err != nil {
		p.metrics.PollFailures.Inc()
		if ctx.Err() == nil {
			p.evaluator.Expire(ctx)
		}
		return fmt.Errorf("fetch events: %w", err)
	}
	p.metrics.PollBatchSize.Observe(float64(len(events)))

	res := p.evaluator.EvaluateSeismic(ctx, events)
	expired := p.evaluator.Expire(ctx)

	p.metrics.PollCycleDuration.Observe(p.clock.Since(start).Seconds())
	p.ready.Store(true)
	p.logger.Debug("seismic poll complete",
		"events", len(events),
		"alerted", len(res.Alerted),
		"suppressed", res.Suppressed,
		"skipped", res.Skipped,
		"errors", res.Errors,
		"expired", expired,
	)
	return nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
