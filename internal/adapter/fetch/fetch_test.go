package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/observability"
)

type payload struct {
	Value int `json:"value"`
}

func newTestClient(timeout time.Duration) (*Client, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return NewClient("test", timeout, 0, m, slog.Default()), m
}

func fetchErr(t *testing.T, err error) *domain.FetchError {
	t.Helper()
	var fe *domain.FetchError
	require.True(t, errors.As(err, &fe), "expected FetchError, got %v", err)
	return fe
}

func TestGetJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "40.7", r.URL.Query().Get("lat"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"value": 42}`)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	c, m := newTestClient(time.Second)
	var out payload
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, url.Values{"lat": {"40.7"}}, &out))
	assert.Equal(t, 42, out.Value)
	assert.InDelta(t, 1, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("test", "success")), 1e-9)
}

func TestGetJSON_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   domain.FetchErrorKind
	}{
		{http.StatusBadRequest, domain.FetchUpstream4xx},
		{http.StatusNotFound, domain.FetchUpstream4xx},
		{http.StatusInternalServerError, domain.FetchUpstream5xx},
		{http.StatusServiceUnavailable, domain.FetchUpstream5xx},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			c, m := newTestClient(time.Second)
			err := c.GetJSON(context.Background(), srv.URL, nil, &payload{})
			fe := fetchErr(t, err)
			assert.Equal(t, tt.kind, fe.Kind)
			assert.Equal(t, tt.status, fe.StatusCode)
			assert.Equal(t, "test", fe.Source)
			assert.Contains(t, fe.Message, "nope")
			assert.InDelta(t, 1, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("test", string(tt.kind))), 1e-9)
		})
	}
}

func TestGetJSON_ParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"value": `)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	c, _ := newTestClient(time.Second)
	err := c.GetJSON(context.Background(), srv.URL, nil, &payload{})
	assert.Equal(t, domain.FetchParseError, fetchErr(t, err).Kind)
}

func TestGetJSON_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, _ := newTestClient(50 * time.Millisecond)
	err := c.GetJSON(context.Background(), srv.URL, nil, &payload{})
	assert.Equal(t, domain.FetchTimeout, fetchErr(t, err).Kind)
}

func TestGetJSON_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, _ := newTestClient(5 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.GetJSON(ctx, srv.URL, nil, &payload{})
	assert.Equal(t, domain.FetchTimeout, fetchErr(t, err).Kind)
}

func TestGetJSON_Transport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, _ := newTestClient(time.Second)
	err := c.GetJSON(context.Background(), addr, nil, &payload{})
	fe := fetchErr(t, err)
	assert.Equal(t, domain.FetchTransport, fe.Kind)
	assert.NotNil(t, errors.Unwrap(fe))
}

func TestNewClient_RateLimit(t *testing.T) {
	c := NewClient("limited", time.Second, 2.5, observability.NewMetricsForTesting(), slog.Default())
	assert.Equal(t, "limited", c.Source())
	assert.InDelta(t, 2.5, float64(c.limiter.Limit()), 1e-9)
	assert.Equal(t, 2, c.limiter.Burst())
}
