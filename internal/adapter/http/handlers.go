package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/couchcryptid/geohazard-service/internal/alert"
	"github.com/couchcryptid/geohazard-service/internal/assessment"
	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// defaultRecentMagnitude filters the worldwide listing when the caller
// gives no min_magnitude.
const defaultRecentMagnitude = 2.5

func (s *Server) handleSoil(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := parseLocation(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	report, err := s.deps.Assessor.Soil(ctx, loc, q.Get("depth"), q.Get("land_cover"))
	s.respond(w, r, report, err)
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := parseLocation(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	a, err := s.deps.Assessor.Risk(ctx, loc, q.Get("land_cover"))
	s.respond(w, r, a, err)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := parseLocation(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	o, err := s.deps.Assessor.Overview(ctx, loc, q.Get("land_cover"))
	s.respond(w, r, o, err)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := parseLocation(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	rec, err := s.deps.Assessor.Recommendations(ctx, loc, q.Get("land_cover"))
	s.respond(w, r, rec, err)
}

func (s *Server) handleRecentEarthquakes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := params{values: q}
	query := assessment.RecentQuery{
		Days:         p.int("days", 0),
		MinMagnitude: p.float("min_magnitude", defaultRecentMagnitude),
		Limit:        p.int("limit", 0),
	}
	if p.err != nil {
		s.writeError(w, r, p.err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	out, err := s.deps.Assessor.RecentEarthquakes(ctx, query)
	s.respond(w, r, out, err)
}

func (s *Server) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := alert.Filter{
		Type:     q.Get("type"),
		Severity: domain.Severity(q.Get("severity")),
		Limit:    alert.MaxHistoryLimit,
	}.Normalize()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	alerts := s.deps.Alerts.Active(f)
	writeJSON(w, http.StatusOK, map[string]any{"count": len(alerts), "alerts": alerts})
}

func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := params{values: q}
	f := alert.Filter{
		Type:     q.Get("type"),
		Severity: domain.Severity(q.Get("severity")),
		Limit:    p.int("limit", 0),
	}
	if p.err != nil {
		s.writeError(w, r, p.err)
		return
	}
	alerts, err := s.deps.Alerts.History(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(alerts), "alerts": alerts})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Alerts.Dismiss(r.Context(), r.PathValue("id"))
	s.respond(w, r, a, err)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"caches": s.deps.Assessor.CacheStats()})
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// writeError maps typed errors onto status codes. Upstream trouble never
// reaches here; it surfaces as a degraded 200.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, domain.ErrAlertNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

func parseLocation(q url.Values) (domain.Location, error) {
	p := params{values: q}
	loc := domain.Location{
		Latitude:  p.requiredFloat("lat"),
		Longitude: p.requiredFloat("lon"),
	}
	if q.Has("elevation") {
		loc.ElevationM = domain.Float(p.float("elevation", 0))
	}
	if p.err != nil {
		return domain.Location{}, p.err
	}
	return loc, nil
}

// params keeps the first malformed query parameter as a ValidationError.
type params struct {
	values url.Values
	err    error
}

func (p *params) fail(field, reason string) {
	if p.err == nil {
		p.err = &domain.ValidationError{Field: field, Reason: reason}
	}
}

func (p *params) requiredFloat(name string) float64 {
	if p.values.Get(name) == "" {
		p.fail(name, "is required")
		return 0
	}
	return p.float(name, 0)
}

func (p *params) float(name string, def float64) float64 {
	raw := p.values.Get(name)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(name, "must be a number")
		return def
	}
	return f
}

func (p *params) int(name string, def int) int {
	raw := p.values.Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(name, "must be an integer")
		return def
	}
	return n
}
