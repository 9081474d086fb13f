// Package postgres stores the alert history in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/couchcryptid/geohazard-service/internal/alert"
	"github.com/couchcryptid/geohazard-service/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL,
	lat         DOUBLE PRECISION,
	lon         DOUBLE PRECISION,
	radius_km   DOUBLE PRECISION,
	data        JSONB,
	is_active   BOOLEAN NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS alerts_created_at_idx ON alerts (created_at DESC);
CREATE INDEX IF NOT EXISTS alerts_active_idx ON alerts (is_active) WHERE is_active;
`

// Connect opens a pool against dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = 8
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// AlertLog implements alert.History on an alerts table.
type AlertLog struct {
	db *pgxpool.Pool
}

// NewAlertLog creates the table if needed and returns the log.
func NewAlertLog(ctx context.Context, db *pgxpool.Pool) (*AlertLog, error) {
	if _, err := db.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("create alerts schema: %w", err)
	}
	return &AlertLog{db: db}, nil
}

// Append inserts a unless its ID is already stored.
func (l *AlertLog) Append(ctx context.Context, a domain.Alert) (bool, error) {
	var data []byte
	if len(a.Data) > 0 {
		var err error
		if data, err = json.Marshal(a.Data); err != nil {
			return false, fmt.Errorf("marshal alert data: %w", err)
		}
	}

	tag, err := l.db.Exec(ctx, `
		INSERT INTO alerts (
			id, type, severity, title, description,
			lat, lon, radius_km, data, is_active, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		a.ID, a.Type, string(a.Severity), a.Title, a.Description,
		a.Lat, a.Lon, a.RadiusKm, data, a.IsActive, a.CreatedAt, a.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert alert %s: %w", a.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetInactive clears is_active on a stored alert.
func (l *AlertLog) SetInactive(ctx context.Context, id string) error {
	tag, err := l.db.Exec(ctx, `UPDATE alerts SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate alert %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlertNotFound
	}
	return nil
}

// List returns matching alerts, newest first.
func (l *AlertLog) List(ctx context.Context, f alert.Filter) ([]domain.Alert, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}
	query, args := listQuery(f)

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var (
			a        domain.Alert
			severity string
			data     []byte
		)
		if err := rows.Scan(
			&a.ID, &a.Type, &severity, &a.Title, &a.Description,
			&a.Lat, &a.Lon, &a.RadiusKm, &data, &a.IsActive, &a.CreatedAt, &a.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Severity = domain.Severity(severity)
		a.CreatedAt = a.CreatedAt.UTC()
		a.ExpiresAt = a.ExpiresAt.UTC()
		if len(data) > 0 {
			if err := json.Unmarshal(data, &a.Data); err != nil {
				return nil, fmt.Errorf("unmarshal alert data %s: %w", a.ID, err)
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return out, nil
}

func listQuery(f alert.Filter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, type, severity, title, description,
		lat, lon, radius_km, data, is_active, created_at, expires_at
		FROM alerts WHERE 1=1`)

	var args []any
	if f.Type != "" {
		args = append(args, f.Type)
		fmt.Fprintf(&b, " AND type = $%d", len(args))
	}
	if f.Severity != "" {
		args = append(args, string(f.Severity))
		fmt.Fprintf(&b, " AND severity = $%d", len(args))
	}
	if f.ActiveOnly {
		b.WriteString(" AND is_active")
	}
	args = append(args, f.Limit)
	fmt.Fprintf(&b, " ORDER BY created_at DESC, id LIMIT $%d", len(args))
	return b.String(), args
}
