// Package fetch is the shared HTTP GET + JSON path for every upstream
// adapter. It rate limits outbound calls, records upstream metrics, and maps
// every failure onto a *domain.FetchError.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/observability"
)

// maxErrorBody bounds how much of an error response is kept in the message.
const maxErrorBody = 512

// Client performs JSON GETs against one upstream source.
type Client struct {
	source     string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a client for source. ratePerSec <= 0 disables limiting.
func NewClient(source string, timeout time.Duration, ratePerSec float64, metrics *observability.Metrics, logger *slog.Logger) *Client {
	limit := rate.Inf
	burst := 1
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
		burst = max(1, int(ratePerSec))
	}
	return &Client{
		source:     source,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		metrics:    metrics,
		logger:     logger,
	}
}

// Source returns the upstream name used in metrics and errors.
func (c *Client) Source() string { return c.source }

// GetJSON requests rawURL with query and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	start := time.Now()
	err := c.getJSON(ctx, rawURL, query, out)
	c.metrics.UpstreamDuration.WithLabelValues(c.source).Observe(time.Since(start).Seconds())

	outcome := "success"
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		outcome = string(fe.Kind)
		c.logger.Debug("upstream fetch failed", "source", c.source, "kind", fe.Kind, "status", fe.StatusCode)
	}
	c.metrics.UpstreamRequests.WithLabelValues(c.source, outcome).Inc()
	return err
}

func (c *Client) getJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.classify(err)
	}

	u := rawURL
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &domain.FetchError{Source: c.source, Kind: domain.FetchTransport, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		kind := domain.FetchUpstream5xx
		if resp.StatusCode < 500 {
			kind = domain.FetchUpstream4xx
		}
		return &domain.FetchError{
			Source:     c.source,
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(err) {
			return c.classify(err)
		}
		return &domain.FetchError{Source: c.source, Kind: domain.FetchParseError, Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	return nil
}

// classify sorts a transport-level error into timeout or transport.
func (c *Client) classify(err error) error {
	kind := domain.FetchTransport
	if isTimeout(err) {
		kind = domain.FetchTimeout
	}
	return &domain.FetchError{Source: c.source, Kind: kind, Message: err.Error(), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
