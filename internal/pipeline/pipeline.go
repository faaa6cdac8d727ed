package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/fire-incident-visor/internal/domain"
	"github.com/couchcryptid/fire-incident-visor/internal/observability"
)

// Source returns the current snapshot of an input file.
type Source interface {
	Load(ctx context.Context, path string) (*domain.Snapshot, error)
	Invalidate(path string)
}

// Publisher exports a built dataset.
type Publisher interface {
	Publish(ctx context.Context, ds *domain.Dataset) error
}

// Options configures a Pipeline.
type Options struct {
	// Path is the input spreadsheet.
	Path string
	// Location interprets Fecha values without a zone. Defaults to UTC.
	Location *time.Location
	// PublishAttempts bounds export retries per snapshot. Defaults to 3.
	PublishAttempts int
}

// Pipeline runs load, normalize and project for the configured input file.
// Builds hand new snapshots to the export loop started by Run; they never
// wait on the publisher.
type Pipeline struct {
	source    Source
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options
	ready     atomic.Bool

	queueMu sync.Mutex
	queued  string
	pending chan *domain.Dataset
}

// New creates a Pipeline. Pass a nil publisher to disable export.
func New(source Source, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.PublishAttempts < 1 {
		opts.PublishAttempts = 3
	}
	return &Pipeline{
		source:    source,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
		pending:   make(chan *domain.Dataset, 1),
	}
}

// Path returns the configured input file.
func (p *Pipeline) Path() string {
	return p.opts.Path
}

// CheckReadiness returns nil once a dataset has been built, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no dataset has been built yet")
	}
	return nil
}

// Invalidate forces the next Build to re-read the input file.
func (p *Pipeline) Invalidate() {
	p.source.Invalidate(p.opts.Path)
	p.logger.Info("load cache invalidated", "path", p.opts.Path)
}

// Build runs one pass over the current snapshot of the input file. A missing
// file yields an error matching domain.ErrSourceNotFound.
func (p *Pipeline) Build(ctx context.Context) (*domain.Dataset, error) {
	start := time.Now()
	p.metrics.Builds.Inc()

	snap, err := p.source.Load(ctx, p.opts.Path)
	if err != nil {
		if errors.Is(err, domain.ErrSourceNotFound) {
			p.metrics.BuildErrors.WithLabelValues("not_found").Inc()
			p.logger.Warn("input file not found", "path", p.opts.Path)
		} else {
			p.metrics.BuildErrors.WithLabelValues("failed").Inc()
			p.logger.Error("load input failed", "path", p.opts.Path, "error", err)
		}
		return nil, fmt.Errorf("load %s: %w", p.opts.Path, err)
	}

	norm := domain.Normalize(snap.Table, p.opts.Location)
	p.recordDropped(norm.Dropped, len(snap.Table.Rows))

	incidents := domain.Project(norm.Incidents)
	ds := &domain.Dataset{
		SnapshotID: snap.ID,
		Source:     snap.Path,
		ModTime:    snap.ModTime,
		LoadedAt:   snap.ReadAt,
		Headers:    norm.Headers,
		Incidents:  incidents,
		Dropped:    norm.Dropped,
		Summary:    domain.Summarize(incidents, len(norm.Dropped)),
	}

	p.metrics.SourceRows.Set(float64(len(snap.Table.Rows)))
	p.metrics.Incidents.Set(float64(len(incidents)))
	p.metrics.BuildDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)

	p.logger.Debug("dataset built",
		"snapshot_id", ds.SnapshotID,
		"incidents", len(incidents),
		"dropped", len(norm.Dropped),
		"duration", time.Since(start),
	)

	p.enqueue(ds)
	return ds, nil
}

func (p *Pipeline) recordDropped(dropped []domain.DroppedRow, total int) {
	counts := map[domain.DropReason]int{
		domain.DropLatitude:    0,
		domain.DropLongitude:   0,
		domain.DropCoordinates: 0,
	}
	for _, d := range dropped {
		counts[d.Reason]++
	}
	for reason, n := range counts {
		p.metrics.DroppedRows.WithLabelValues(string(reason)).Set(float64(n))
	}

	if len(dropped) == 0 {
		return
	}
	p.logger.Warn("rows dropped for invalid coordinates", "dropped", len(dropped), "rows", total)
	for _, d := range dropped {
		p.logger.Debug("dropped row",
			"row", d.Row,
			"reason", d.Reason,
			"latitude", d.RawLatitude,
			"longitude", d.RawLongitude,
		)
	}
}

// enqueue hands ds to the export loop once per snapshot. A snapshot still
// waiting to be exported is replaced by the newer one.
func (p *Pipeline) enqueue(ds *domain.Dataset) {
	if p.publisher == nil {
		return
	}

	p.queueMu.Lock()
	defer p.queueMu.Unlock()

	if p.queued == ds.SnapshotID {
		return
	}
	p.queued = ds.SnapshotID

	select {
	case p.pending <- ds:
		return
	default:
	}
	select {
	case <-p.pending:
	default:
	}
	p.pending <- ds
}

// Run exports queued snapshots until ctx is cancelled. It returns at once
// when export is disabled.
func (p *Pipeline) Run(ctx context.Context) {
	if p.publisher == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ds := <-p.pending:
			p.publish(ctx, ds)
		}
	}
}

// publish exports ds with retries. A snapshot that still fails is logged and
// counted; it is not retried until the input file changes or is reloaded.
func (p *Pipeline) publish(ctx context.Context, ds *domain.Dataset) {
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	var err error
	for attempt := 1; attempt <= p.opts.PublishAttempts; attempt++ {
		if err = p.publisher.Publish(ctx, ds); err == nil {
			p.metrics.PublishedMessages.Add(float64(len(ds.Incidents)))
			p.logger.Info("snapshot published", "snapshot_id", ds.SnapshotID, "incidents", len(ds.Incidents))
			return
		}
		p.logger.Warn("publish snapshot failed", "snapshot_id", ds.SnapshotID, "attempt", attempt, "error", err)
		if attempt == p.opts.PublishAttempts || !sleepWithContext(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
	p.metrics.PublishErrors.Inc()
	p.logger.Error("snapshot not published", "snapshot_id", ds.SnapshotID, "error", err)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
