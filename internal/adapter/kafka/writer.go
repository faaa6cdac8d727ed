// Package kafka exports built incident snapshots to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/fire-incident-visor/internal/config"
	"github.com/couchcryptid/fire-incident-visor/internal/domain"
)

// Writer produces one message per incident to the export topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured export topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes every incident in ds and writes them in a single
// WriteMessages call.
func (w *Writer) Publish(ctx context.Context, ds *domain.Dataset) error {
	if len(ds.Incidents) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(ds.Incidents))
	for i := range ds.Incidents {
		msg, err := serializeToMessage(ds, ds.Incidents[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	w.logger.Debug("incidents written", "topic", w.writer.Topic, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// incidentMessage is the exported JSON shape of one incident.
type incidentMessage struct {
	SnapshotID string     `json:"snapshot_id"`
	Source     string     `json:"source"`
	Row        int        `json:"row"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	CRS        string     `json:"crs"`
	Date       *time.Time `json:"date,omitempty"`
	DateText   string     `json:"date_text,omitempty"`
	Report     string     `json:"report,omitempty"`
	Address    string     `json:"address,omitempty"`
	Type       string     `json:"type,omitempty"`
	Status     string     `json:"status,omitempty"`
	Units      string     `json:"units,omitempty"`
	UnitCount  *float64   `json:"unit_count,omitempty"`
	Elevation  *float64   `json:"elevation_m,omitempty"`
	URL        string     `json:"url,omitempty"`
}

// serializeToMessage marshals an incident into a Kafka message keyed by
// snapshot and row.
func serializeToMessage(ds *domain.Dataset, inc domain.Incident) (kafkago.Message, error) {
	msg := incidentMessage{
		SnapshotID: ds.SnapshotID,
		Source:     ds.Source,
		Row:        inc.Row,
		Latitude:   inc.Latitude,
		Longitude:  inc.Longitude,
		CRS:        domain.CRS,
		DateText:   inc.DateText(),
		Report:     inc.Field(domain.ColReport),
		Address:    inc.Field(domain.ColAddress),
		Type:       inc.Field(domain.ColType),
		Status:     inc.Field(domain.ColStatus),
		Units:      inc.Field(domain.ColUnits),
		UnitCount:  inc.UnitCount,
		Elevation:  inc.Elevation,
		URL:        inc.Field(domain.ColURL),
	}
	if inc.HasDate() {
		d := inc.Date
		msg.Date = &d
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incident row %d: %w", inc.Row, err)
	}
	return kafkago.Message{
		Key:   []byte(ds.SnapshotID + ":" + strconv.Itoa(inc.Row)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "snapshot_id", Value: []byte(ds.SnapshotID)},
			{Key: "loaded_at", Value: []byte(ds.LoadedAt.Format(time.RFC3339))},
		},
	}, nil
}
