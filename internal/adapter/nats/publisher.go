// Package nats publishes alerts as JSON on a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// Publisher implements alert.Sink on a NATS subject.
type Publisher struct {
	conn    conn
	subject string
	logger  *slog.Logger
}

// Connect dials url with reconnect handling and returns a publisher for
// subject.
func Connect(url, subject string, logger *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("geohazard-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newPublisher(nc, subject, logger), nil
}

func newPublisher(c conn, subject string, logger *slog.Logger) *Publisher {
	return &Publisher{conn: c, subject: subject, logger: logger}
}

// Subject returns the per-alert subject: the base subject suffixed with the
// alert type, so consumers can subscribe to "<base>.>" or one hazard.
func (p *Publisher) Subject(a domain.Alert) string {
	return p.subject + "." + a.Type
}

// Publish sends a and flushes so delivery errors surface to the caller.
func (p *Publisher) Publish(ctx context.Context, a domain.Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("serialize alert: %w", err)
	}
	subject := p.Subject(a)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	p.logger.Debug("alert published", "sink", "nats", "subject", subject, "id", a.ID)
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
