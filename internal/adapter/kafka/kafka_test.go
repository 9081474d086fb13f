package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geohazard-service/internal/domain"
)

func TestSerializeAlert(t *testing.T) {
	created := time.Date(2026, 3, 10, 15, 10, 0, 0, time.UTC)
	a := domain.Alert{
		ID:        domain.SeismicAlertID("us7000pq1a"),
		Type:      domain.AlertTypeEarthquake,
		Severity:  domain.SeverityWarning,
		Title:     "M6.4 earthquake",
		Lat:       domain.Float(38.1),
		Lon:       domain.Float(142.9),
		IsActive:  true,
		CreatedAt: created,
		ExpiresAt: created.Add(24 * time.Hour),
	}

	msg, err := serializeAlert(a)
	require.NoError(t, err)

	assert.Equal(t, []byte(a.ID), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "alert_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("earthquake"), msg.Headers[0].Value)
	assert.Equal(t, "severity", msg.Headers[1].Key)
	assert.Equal(t, []byte("warning"), msg.Headers[1].Value)
	assert.Equal(t, "created_at", msg.Headers[2].Key)
	assert.Equal(t, []byte("2026-03-10T15:10:00Z"), msg.Headers[2].Value)

	var decoded domain.Alert
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, a.ID, decoded.ID)
	assert.Equal(t, 38.1, *decoded.Lat)
	assert.True(t, decoded.IsActive)
	assert.Nil(t, decoded.RadiusKm)
}

func TestSerializeAlert_UnencodableData(t *testing.T) {
	a := domain.Alert{ID: "x", Data: map[string]any{"bad": make(chan int)}}
	_, err := serializeAlert(a)
	assert.ErrorContains(t, err, "serialize alert")
}
