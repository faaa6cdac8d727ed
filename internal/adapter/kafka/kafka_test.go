package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fire-incident-visor/internal/config"
	"github.com/couchcryptid/fire-incident-visor/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func TestSerializeToMessage(t *testing.T) {
	loadedAt := time.Date(2024, 3, 15, 15, 30, 0, 0, time.UTC)
	date := time.Date(2024, 3, 15, 10, 30, 0, 0, time.FixedZone("PET", -5*60*60))
	ds := &domain.Dataset{SnapshotID: "snap-1", Source: "df_hoy.xlsx", LoadedAt: loadedAt}
	inc := domain.Incident{
		Row:       7,
		Latitude:  -12.05,
		Longitude: -77.04,
		UnitCount: ptr(2),
		Date:      date,
		Fields: domain.Row{
			domain.ColReport: "2024-007",
			domain.ColDate:   "15/03/2024 10:30",
			domain.ColType:   "INCENDIO",
		},
	}

	msg, err := serializeToMessage(ds, inc)
	require.NoError(t, err)

	assert.Equal(t, []byte("snap-1:7"), msg.Key)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "snapshot_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("snap-1"), msg.Headers[0].Value)
	assert.Equal(t, "loaded_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(loadedAt.Format(time.RFC3339)), msg.Headers[1].Value)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "snap-1", body["snapshot_id"])
	assert.InDelta(t, 7, body["row"], 0)
	assert.InDelta(t, -12.05, body["latitude"], 0)
	assert.InDelta(t, -77.04, body["longitude"], 0)
	assert.Equal(t, "EPSG:4326", body["crs"])
	assert.Equal(t, "2024-03-15T10:30:00-05:00", body["date"])
	assert.Equal(t, "15/03/2024 10:30", body["date_text"])
	assert.Equal(t, "INCENDIO", body["type"])
	assert.InDelta(t, 2, body["unit_count"], 0)
	assert.NotContains(t, body, "elevation_m")
}

func TestSerializeToMessage_UndatedIncident(t *testing.T) {
	ds := &domain.Dataset{SnapshotID: "snap-1"}
	msg, err := serializeToMessage(ds, domain.Incident{Row: 1, Latitude: -12, Longitude: -77})
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.NotContains(t, body, "date")
	assert.NotContains(t, body, "unit_count")
}

func TestPublish_EmptyDatasetWritesNothing(t *testing.T) {
	w := NewWriter(&config.Config{KafkaBrokers: []string{"localhost:1"}, KafkaTopic: "fire-incidents"}, slog.Default())
	t.Cleanup(func() { _ = w.Close() })

	err := w.Publish(context.Background(), &domain.Dataset{SnapshotID: "empty"})
	assert.NoError(t, err)
}
