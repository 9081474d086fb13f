//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geohazard-service/internal/adapter/kafka"
	"github.com/couchcryptid/geohazard-service/internal/adapter/postgres"
	"github.com/couchcryptid/geohazard-service/internal/alert"
	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/observability"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

// publishedAlert holds a message read back from the alert topic.
type publishedAlert struct {
	Alert   domain.Alert
	Key     string
	Headers map[string]string
}

func newAlertReader(broker, topic string) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  []string{broker},
		Topic:    topic,
		GroupID:  fmt.Sprintf("test-alerts-%d", time.Now().UnixNano()),
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
}

// readAlert reads a single message from the alert topic and deserializes it.
func readAlert(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedAlert {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from alert topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var a domain.Alert
	require.NoError(t, json.Unmarshal(msg.Value, &a), "unmarshal alert message")
	return publishedAlert{Alert: a, Key: string(msg.Key), Headers: headers}
}

func quake(id string, magnitude float64) domain.EarthquakeEvent {
	return domain.EarthquakeEvent{
		EventID:       id,
		Latitude:      35.7,
		Longitude:     139.7,
		DepthKm:       30,
		Magnitude:     magnitude,
		MagnitudeType: "mww",
		Place:         "near Tokyo, Japan",
		EventTime:     testNow.Add(-10 * time.Minute),
	}
}

func testAlert(id, typ string, sev domain.Severity, created time.Time) domain.Alert {
	lat, lon := 10.0, 20.0
	return domain.Alert{
		ID:          id,
		Type:        typ,
		Severity:    sev,
		Title:       "test " + id,
		Description: "integration test alert",
		Lat:         &lat,
		Lon:         &lon,
		Data:        map[string]any{"probability": 0.85},
		IsActive:    true,
		CreatedAt:   created,
		ExpiresAt:   created.Add(24 * time.Hour),
	}
}

// TestAlertWriter verifies an alert round-trips through Kafka with its ID as
// key and type/severity headers.
func TestAlertWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, "alerts-writer")

	writer := kafka.NewAlertWriter([]string{broker}, "alerts-writer", discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	want := testAlert("flood-1", domain.AlertTypeFlood, domain.SeverityWarning, testNow)
	require.NoError(t, writer.Publish(ctx, want))

	consumer := newAlertReader(broker, "alerts-writer")
	t.Cleanup(func() { _ = consumer.Close() })

	got := readAlert(ctx, t, consumer)
	assert.Equal(t, "flood-1", got.Key)
	assert.Equal(t, domain.AlertTypeFlood, got.Headers["alert_type"])
	assert.Equal(t, string(domain.SeverityWarning), got.Headers["severity"])
	assert.Equal(t, testNow.Format(time.RFC3339), got.Headers["created_at"])
	assert.Equal(t, want.Title, got.Alert.Title)
	assert.True(t, want.CreatedAt.Equal(got.Alert.CreatedAt))
}

// TestAlertLog verifies idempotent appends, filtering and deactivation
// against a real Postgres.
func TestAlertLog(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, startPostgres(ctx, t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	log, err := postgres.NewAlertLog(ctx, pool)
	require.NoError(t, err)
	_, err = postgres.NewAlertLog(ctx, pool)
	require.NoError(t, err, "schema creation is repeatable")

	older := testAlert("a-old", domain.AlertTypeFlood, domain.SeverityWatch, testNow.Add(-time.Hour))
	newer := testAlert("a-new", domain.AlertTypeWildfire, domain.SeverityCritical, testNow)

	for _, a := range []domain.Alert{older, newer} {
		inserted, err := log.Append(ctx, a)
		require.NoError(t, err)
		assert.True(t, inserted)
	}
	inserted, err := log.Append(ctx, older)
	require.NoError(t, err)
	assert.False(t, inserted, "same ID appends once")

	all, err := log.List(ctx, alert.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a-new", all[0].ID, "newest first")
	assert.InDelta(t, 0.85, all[0].Data["probability"], 1e-9)
	require.NotNil(t, all[0].Lat)
	assert.InDelta(t, 10.0, *all[0].Lat, 1e-9)
	assert.Nil(t, all[0].RadiusKm)

	floods, err := log.List(ctx, alert.Filter{Type: domain.AlertTypeFlood})
	require.NoError(t, err)
	require.Len(t, floods, 1)
	assert.Equal(t, "a-old", floods[0].ID)

	critical, err := log.List(ctx, alert.Filter{Severity: domain.SeverityCritical})
	require.NoError(t, err)
	require.Len(t, critical, 1)

	require.NoError(t, log.SetInactive(ctx, "a-new"))
	active, err := log.List(ctx, alert.Filter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a-old", active[0].ID)

	assert.ErrorIs(t, log.SetInactive(ctx, "missing"), domain.ErrAlertNotFound)

	limited, err := log.List(ctx, alert.Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// TestEvaluatorPersistsAndRestores runs a seismic batch through an evaluator
// backed by Postgres and Kafka, then restarts it and checks the active alert
// is restored rather than raised again.
func TestEvaluatorPersistsAndRestores(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, "alerts-e2e")
	pool, err := postgres.Connect(ctx, startPostgres(ctx, t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	history, err := postgres.NewAlertLog(ctx, pool)
	require.NoError(t, err)
	writer := kafka.NewAlertWriter([]string{broker}, "alerts-e2e", discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClockAt(testNow)
	newEvaluator := func() *alert.Evaluator {
		sink := alert.NewMultiSink(metrics, alert.NamedSink{Name: "kafka", Sink: writer})
		return alert.NewEvaluator(alert.DefaultConfig(), sink, history, discardLogger(), metrics, clock)
	}

	first := newEvaluator()
	res := first.EvaluateSeismic(ctx, []domain.EarthquakeEvent{quake("us7000abcd", 6.1), quake("us7000small", 2.0)})
	require.Len(t, res.Alerted, 1)
	assert.Equal(t, 1, res.Suppressed)
	id := res.Alerted[0].ID
	assert.Equal(t, domain.SeismicAlertID("us7000abcd"), id)

	consumer := newAlertReader(broker, "alerts-e2e")
	t.Cleanup(func() { _ = consumer.Close() })
	published := readAlert(ctx, t, consumer)
	assert.Equal(t, id, published.Key)
	assert.Equal(t, domain.AlertTypeEarthquake, published.Alert.Type)

	stored, err := first.History(ctx, alert.Filter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, id, stored[0].ID)

	// Restart.
	second := newEvaluator()
	n, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, second.Active(alert.Filter{}), 1)

	again := second.EvaluateSeismic(ctx, []domain.EarthquakeEvent{quake("us7000abcd", 6.1)})
	assert.Empty(t, again.Alerted, "restored alert is not raised twice")

	dismissed, err := second.Dismiss(ctx, id)
	require.NoError(t, err)
	assert.False(t, dismissed.IsActive)
	active, err := second.History(ctx, alert.Filter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)
}
