// Package alert turns earthquake events and risk assessments into alerts,
// tracks their lifecycle, and delivers them to sinks and the history log.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Config holds the alerting thresholds and retention periods.
type Config struct {
	SeismicMinMagnitude float64
	SeismicRetention    time.Duration
	HazardRetention     time.Duration
	DebounceWindow      time.Duration
	BucketDeg           float64
	HazardRadiusKm      float64
	SeenCapacity        int
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		SeismicMinMagnitude: 4.0,
		SeismicRetention:    48 * time.Hour,
		HazardRetention:     24 * time.Hour,
		DebounceWindow:      6 * time.Hour,
		BucketDeg:           0.1,
		HazardRadiusKm:      10,
		SeenCapacity:        10000,
	}
}

// BatchResult summarizes one EvaluateSeismic call.
type BatchResult struct {
	Alerted    []domain.Alert
	Suppressed int
	Skipped    int
	Errors     int
}

type tracked struct {
	alert domain.Alert
	state State
}

// bucketState is the last evaluation of one (bucket, hazard) pair.
type bucketState struct {
	above    bool
	lastEval time.Time
}

// Evaluator owns the set of active alerts. It is safe for concurrent use.
type Evaluator struct {
	cfg     Config
	sink    Sink
	history History
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock

	mu      sync.Mutex
	active  map[string]*tracked
	seen    *seenSet
	closed  *seenSet
	buckets map[string]bucketState
}

// NewEvaluator wires an evaluator. A nil clock uses real time.
func NewEvaluator(cfg Config, sink Sink, history History, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Evaluator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Evaluator{
		cfg:     cfg,
		sink:    sink,
		history: history,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
		active:  make(map[string]*tracked),
		seen:    newSeenSet(cfg.SeenCapacity),
		closed:  newSeenSet(cfg.SeenCapacity),
		buckets: make(map[string]bucketState),
	}
}

// EvaluateSeismic runs each event through OBSERVED -> EVALUATED and on to
// ALERTED or SUPPRESSED. Known event IDs are skipped. A malformed event is
// logged and counted and the rest of the batch continues.
func (e *Evaluator) EvaluateSeismic(ctx context.Context, events []domain.EarthquakeEvent) BatchResult {
	var res BatchResult
	now := e.clock.Now().UTC()

	e.mu.Lock()
	for _, ev := range events {
		if err := validateEvent(ev); err != nil {
			e.logger.Warn("skipping malformed earthquake event", "event_id", ev.EventID, "error", err)
			e.metrics.SeismicEventErrors.Inc()
			res.Errors++
			continue
		}
		if !e.seen.Add(ev.EventID) {
			res.Skipped++
			continue
		}

		next := StateAlerted
		if ev.Magnitude < e.cfg.SeismicMinMagnitude {
			next = StateSuppressed
		}
		state, _ := Transition(StateObserved, StateEvaluated)
		state, err := Transition(state, next)
		if err != nil {
			e.logger.Error("seismic alert transition", "event_id", ev.EventID, "error", err)
			res.Errors++
			continue
		}
		if state == StateSuppressed {
			e.metrics.AlertsSuppressed.Inc()
			res.Suppressed++
			continue
		}

		a := e.seismicAlert(ev, now)
		if _, ok := e.active[a.ID]; ok {
			res.Skipped++
			continue
		}
		e.track(a)
		res.Alerted = append(res.Alerted, a)
	}
	e.mu.Unlock()

	res.Alerted = e.deliver(ctx, res.Alerted)
	return res
}

// EvaluateHazard raises alerts for the composite score and each model whose
// probability crossed High since the previous evaluation of the same grid
// cell inside the debounce window.
func (e *Evaluator) EvaluateHazard(ctx context.Context, a domain.RiskAssessment) []domain.Alert {
	now := e.clock.Now().UTC()
	lat, lon := a.Location.Latitude, a.Location.Longitude
	bucket := domain.Bucket(lat, lon, e.cfg.BucketDeg)

	type reading struct {
		hazard string
		p      float64
		level  domain.Level
	}
	readings := []reading{
		{domain.AlertTypeComposite, float64(a.CompositeRiskScore) / 100, a.CompositeRiskLevel},
		{domain.AlertTypeLandslide, a.Risks.Landslide.Probability, a.Risks.Landslide.Level},
		{domain.AlertTypeFlood, a.Risks.Flood.Probability, a.Risks.Flood.Level},
		{domain.AlertTypeWildfire, a.Risks.Wildfire.Probability, a.Risks.Wildfire.Level},
		{domain.AlertTypeLiquefaction, a.Risks.Liquefaction.Probability, a.Risks.Liquefaction.Level},
	}

	var raised []domain.Alert
	e.mu.Lock()
	e.forgetStaleBuckets(now)
	for _, r := range readings {
		if r.level == domain.LevelUnknown {
			continue
		}
		key := bucket + "|" + r.hazard
		prev, seen := e.buckets[key]
		above := r.p >= domain.HighThreshold
		e.buckets[key] = bucketState{above: above, lastEval: now}

		if !above {
			continue
		}
		if seen && prev.above {
			// Still above High: debounced.
			continue
		}

		windowStart := now.Truncate(e.cfg.DebounceWindow)
		al := e.hazardAlert(r.hazard, bucket, r.p, r.level, a, windowStart, now)
		if _, ok := e.active[al.ID]; ok {
			continue
		}
		// A dismissed or expired alert is terminal for the rest of its window.
		if e.closed.Has(al.ID) {
			continue
		}
		e.track(al)
		raised = append(raised, al)
	}
	e.mu.Unlock()

	return e.deliver(ctx, raised)
}

// Expire moves every ALERTED alert past its ExpiresAt to EXPIRED and returns
// how many were expired.
func (e *Evaluator) Expire(ctx context.Context) int {
	now := e.clock.Now().UTC()

	e.mu.Lock()
	var ids []string
	for id, t := range e.active {
		if now.Before(t.alert.ExpiresAt) {
			continue
		}
		if _, err := Transition(t.state, StateExpired); err != nil {
			e.logger.Error("expire transition", "alert_id", id, "error", err)
			continue
		}
		delete(e.active, id)
		e.closed.Add(id)
		ids = append(ids, id)
	}
	e.metrics.AlertsActive.Set(float64(len(e.active)))
	e.mu.Unlock()

	for _, id := range ids {
		if err := e.history.SetInactive(ctx, id); err != nil {
			e.logger.Warn("mark expired alert inactive", "alert_id", id, "error", err)
		}
	}
	if len(ids) > 0 {
		e.logger.Info("alerts expired", "count", len(ids))
	}
	return len(ids)
}

// Dismiss moves an active alert to DISMISSED. It returns
// domain.ErrAlertNotFound when no active alert has that ID.
func (e *Evaluator) Dismiss(ctx context.Context, id string) (domain.Alert, error) {
	e.mu.Lock()
	t, ok := e.active[id]
	if !ok {
		e.mu.Unlock()
		return domain.Alert{}, domain.ErrAlertNotFound
	}
	if _, err := Transition(t.state, StateDismissed); err != nil {
		e.mu.Unlock()
		return domain.Alert{}, err
	}
	delete(e.active, id)
	e.closed.Add(id)
	e.metrics.AlertsActive.Set(float64(len(e.active)))
	e.mu.Unlock()

	a := t.alert
	a.IsActive = false
	if err := e.history.SetInactive(ctx, id); err != nil {
		e.logger.Warn("mark dismissed alert inactive", "alert_id", id, "error", err)
	}
	e.logger.Info("alert dismissed", "alert_id", id, "type", a.Type)
	return a, nil
}

// Active returns active alerts matching f, most severe first and newest
// first within a severity. Alerts past ExpiresAt are left out even before
// Expire runs.
func (e *Evaluator) Active(f Filter) []domain.Alert {
	now := e.clock.Now().UTC()

	e.mu.Lock()
	out := make([]domain.Alert, 0, len(e.active))
	for _, t := range e.active {
		if !now.Before(t.alert.ExpiresAt) {
			continue
		}
		if f.Match(t.alert) {
			out = append(out, t.alert)
		}
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Severity.Rank(), out[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// History reads the durable log.
func (e *Evaluator) History(ctx context.Context, f Filter) ([]domain.Alert, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}
	return e.history.List(ctx, f)
}

// Restore reloads still-active alerts from history after a restart so they
// are neither re-raised nor lost from the active set.
func (e *Evaluator) Restore(ctx context.Context) (int, error) {
	alerts, err := e.history.List(ctx, Filter{ActiveOnly: true, Limit: MaxHistoryLimit})
	if err != nil {
		return 0, fmt.Errorf("restore active alerts: %w", err)
	}
	now := e.clock.Now().UTC()

	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, a := range alerts {
		if !now.Before(a.ExpiresAt) {
			continue
		}
		if eventID, ok := a.Data["event_id"].(string); ok {
			e.seen.Add(eventID)
		}
		e.active[a.ID] = &tracked{alert: a, state: StateAlerted}
		n++
	}
	e.metrics.AlertsActive.Set(float64(len(e.active)))
	return n, nil
}

// track records a as ALERTED. Callers hold e.mu.
func (e *Evaluator) track(a domain.Alert) {
	e.active[a.ID] = &tracked{alert: a, state: StateAlerted}
	e.metrics.AlertsActive.Set(float64(len(e.active)))
}

// untrack drops id from the active set and remembers it as closed.
func (e *Evaluator) untrack(id string) {
	e.mu.Lock()
	delete(e.active, id)
	e.closed.Add(id)
	e.metrics.AlertsActive.Set(float64(len(e.active)))
	e.mu.Unlock()
}

// deliver appends each new alert to history and publishes it to the sink.
// An alert already in history was delivered before, and closed if Restore
// did not bring it back; it is untracked and not published again. Returns
// the alerts that were delivered.
func (e *Evaluator) deliver(ctx context.Context, alerts []domain.Alert) []domain.Alert {
	out := alerts[:0]
	for _, a := range alerts {
		inserted, err := e.history.Append(ctx, a)
		if err != nil {
			e.logger.Error("append alert to history", "alert_id", a.ID, "error", err)
			inserted = true
		}
		if !inserted {
			e.logger.Debug("alert already in history", "alert_id", a.ID)
			e.untrack(a.ID)
			continue
		}
		e.metrics.AlertsRaised.WithLabelValues(a.Type, string(a.Severity)).Inc()
		e.logger.Info("alert raised", "alert_id", a.ID, "type", a.Type, "severity", a.Severity, "title", a.Title)
		if err := e.sink.Publish(ctx, a); err != nil {
			e.logger.Warn("publish alert", "alert_id", a.ID, "error", err)
		}
		out = append(out, a)
	}
	return out
}

func (e *Evaluator) forgetStaleBuckets(now time.Time) {
	for k, b := range e.buckets {
		if now.Sub(b.lastEval) > e.cfg.DebounceWindow {
			delete(e.buckets, k)
		}
	}
}

func (e *Evaluator) seismicAlert(ev domain.EarthquakeEvent, now time.Time) domain.Alert {
	lat, lon := ev.Latitude, ev.Longitude
	radius := ev.Magnitude * 50
	return domain.Alert{
		ID:          domain.SeismicAlertID(ev.EventID),
		Type:        domain.AlertTypeEarthquake,
		Severity:    SeismicSeverity(ev.Magnitude),
		Title:       fmt.Sprintf("M%.1f earthquake - %s", ev.Magnitude, ev.Place),
		Description: fmt.Sprintf("Magnitude %.1f earthquake at depth %.1f km. Ground shaking possible within %.0f km.", ev.Magnitude, ev.DepthKm, radius),
		Lat:         &lat,
		Lon:         &lon,
		RadiusKm:    &radius,
		Data: map[string]any{
			"event_id":       ev.EventID,
			"magnitude":      ev.Magnitude,
			"magnitude_type": ev.MagnitudeType,
			"depth_km":       ev.DepthKm,
			"event_time":     ev.EventTime.UTC().Format(time.RFC3339),
			"tsunami":        ev.Tsunami,
			"significance":   ev.Significance,
			"url":            ev.URL,
		},
		IsActive:  true,
		CreatedAt: now,
		ExpiresAt: now.Add(e.cfg.SeismicRetention),
	}
}

func (e *Evaluator) hazardAlert(hazard, bucket string, p float64, level domain.Level, a domain.RiskAssessment, windowStart, now time.Time) domain.Alert {
	lat, lon := a.Location.Latitude, a.Location.Longitude
	radius := e.cfg.HazardRadiusKm
	severity := domain.SeverityWarning
	if level == domain.LevelCritical {
		severity = domain.SeverityCritical
	}
	place := a.Location.PlaceName
	if place == "" {
		place = fmt.Sprintf("%.2f, %.2f", lat, lon)
	}
	return domain.Alert{
		ID:          domain.HazardAlertID(bucket, hazard, windowStart),
		Type:        hazard,
		Severity:    severity,
		Title:       fmt.Sprintf("%s %s risk near %s", level, hazard, place),
		Description: fmt.Sprintf("%s risk reached %s (%.0f%%).", hazard, level, p*100),
		Lat:         &lat,
		Lon:         &lon,
		RadiusKm:    &radius,
		Data: map[string]any{
			"bucket":      bucket,
			"probability": p,
			"risk_level":  string(level),
			"degraded":    a.Degraded,
		},
		IsActive:  true,
		CreatedAt: now,
		ExpiresAt: now.Add(e.cfg.HazardRetention),
	}
}

// SeismicSeverity maps magnitude onto alert severity.
func SeismicSeverity(m float64) domain.Severity {
	switch {
	case m >= 7:
		return domain.SeverityCritical
	case m >= 6:
		return domain.SeverityWarning
	case m >= 5:
		return domain.SeverityWatch
	default:
		return domain.SeverityAdvisory
	}
}

func validateEvent(ev domain.EarthquakeEvent) error {
	switch {
	case ev.EventID == "":
		return fmt.Errorf("missing event id")
	case math.IsNaN(ev.Magnitude) || math.IsInf(ev.Magnitude, 0):
		return fmt.Errorf("invalid magnitude %v", ev.Magnitude)
	case ev.Latitude < -90 || ev.Latitude > 90 || ev.Longitude < -180 || ev.Longitude > 180:
		return fmt.Errorf("coordinates out of range (%v, %v)", ev.Latitude, ev.Longitude)
	}
	return nil
}

// seenSet remembers the most recent event IDs up to a fixed capacity.
type seenSet struct {
	ids  map[string]struct{}
	ring []string
	next int
}

func newSeenSet(capacity int) *seenSet {
	if capacity < 1 {
		capacity = 1
	}
	return &seenSet{ids: make(map[string]struct{}, capacity), ring: make([]string, 0, capacity)}
}

// Add records id and reports whether it was new.
func (s *seenSet) Add(id string) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	if len(s.ring) < cap(s.ring) {
		s.ring = append(s.ring, id)
	} else {
		delete(s.ids, s.ring[s.next])
		s.ring[s.next] = id
		s.next = (s.next + 1) % len(s.ring)
	}
	s.ids[id] = struct{}{}
	return true
}

// Has reports whether id is remembered.
func (s *seenSet) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}
