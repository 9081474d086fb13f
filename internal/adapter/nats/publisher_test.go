package nats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geohazard-service/internal/domain"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs       []published
	publishErr error
	flushErr   error
	drained    bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.msgs = append(f.msgs, published{subject, data})
	return nil
}

func (f *fakeConn) FlushWithContext(context.Context) error { return f.flushErr }

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func testAlert() domain.Alert {
	created := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	return domain.Alert{
		ID:        "a-1",
		Type:      domain.AlertTypeFlood,
		Severity:  domain.SeverityWatch,
		Title:     "Flood risk high",
		IsActive:  true,
		CreatedAt: created,
		ExpiresAt: created.Add(6 * time.Hour),
	}
}

func TestPublish_SubjectAndPayload(t *testing.T) {
	fc := &fakeConn{}
	p := newPublisher(fc, "geohazard.alerts", slog.Default())

	require.NoError(t, p.Publish(context.Background(), testAlert()))
	require.Len(t, fc.msgs, 1)
	assert.Equal(t, "geohazard.alerts.flood", fc.msgs[0].subject)

	var got domain.Alert
	require.NoError(t, json.Unmarshal(fc.msgs[0].data, &got))
	assert.Equal(t, "a-1", got.ID)
	assert.Equal(t, domain.SeverityWatch, got.Severity)
}

func TestPublish_Errors(t *testing.T) {
	boom := errors.New("boom")

	p := newPublisher(&fakeConn{publishErr: boom}, "alerts", slog.Default())
	err := p.Publish(context.Background(), testAlert())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "publish alerts.flood")

	p = newPublisher(&fakeConn{flushErr: boom}, "alerts", slog.Default())
	err = p.Publish(context.Background(), testAlert())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "flush")
}

func TestClose_Drains(t *testing.T) {
	fc := &fakeConn{}
	require.NoError(t, newPublisher(fc, "alerts", slog.Default()).Close())
	assert.True(t, fc.drained)
}
