package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fire-incident-visor/internal/domain"
	"github.com/couchcryptid/fire-incident-visor/internal/observability"
	"github.com/couchcryptid/fire-incident-visor/internal/pipeline"
)

// --- mocks ---

type mockSource struct {
	mu          sync.Mutex
	snap        *domain.Snapshot
	err         error
	loads       int
	invalidated []string
}

func (m *mockSource) Load(_ context.Context, _ string) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.err != nil {
		return nil, m.err
	}
	return m.snap, nil
}

func (m *mockSource) Invalidate(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, path)
}

type mockPublisher struct {
	mu        sync.Mutex
	failTimes int
	calls     int
	published []string
}

func (m *mockPublisher) Publish(_ context.Context, ds *domain.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failTimes > 0 {
		m.failTimes--
		return errors.New("broker unavailable")
	}
	m.published = append(m.published, ds.SnapshotID)
	return nil
}

func (m *mockPublisher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockPublisher) Published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.published...)
}

// blockingPublisher reports each publish on started and holds it until release
// is closed.
type blockingPublisher struct {
	started   chan string
	release   chan struct{}
	mu        sync.Mutex
	published []string
}

func (b *blockingPublisher) Publish(ctx context.Context, ds *domain.Dataset) error {
	select {
	case b.started <- ds.SnapshotID:
	default:
	}
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, ds.SnapshotID)
	return nil
}

func (b *blockingPublisher) Published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.published...)
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func snapshot(id string, readAt time.Time) *domain.Snapshot {
	return &domain.Snapshot{
		ID:      id,
		Path:    "df_hoy.xlsx",
		ModTime: readAt.Add(-time.Minute),
		Size:    2048,
		ReadAt:  readAt,
		Table: &domain.Table{
			Headers: []string{"Nro Parte", "Fecha y hora", "Tipo", "Latitude", "Longitude", "#Máquinas"},
			Rows: []domain.Row{
				{"Nro Parte": "2024-001", "Fecha y hora": "2024-03-15 10:30:00", "Tipo": "INCENDIO", "Latitude": "-12.05", "Longitude": "-77.04", "#Máquinas": "2"},
				{"Nro Parte": "2024-002", "Tipo": "RESCATE", "Latitude": "N/A", "Longitude": "-77.10"},
				{"Nro Parte": "2024-003", "Tipo": "INCENDIO", "Latitude": " -12.10 ", "Longitude": "-77.00", "#Máquinas": "4"},
				{"Nro Parte": "2024-004", "Tipo": "INCENDIO", "Latitude": "", "Longitude": "abc"},
			},
		},
	}
}

func newPipeline(src pipeline.Source, pub pipeline.Publisher, m *observability.Metrics) *pipeline.Pipeline {
	return pipeline.New(src, pub, slog.Default(), m, pipeline.Options{Path: "df_hoy.xlsx", PublishAttempts: 2})
}

// startExport runs the export loop until the test ends.
func startExport(t *testing.T, p *pipeline.Pipeline) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// --- tests ---

func TestPipeline_Build_HappyPath(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.March, 15, 15, 0, 0, 0, time.UTC))
	src := &mockSource{snap: snapshot("snap-1", clock.Now())}
	metrics := newTestMetrics()

	p := newPipeline(src, nil, metrics)

	require.Error(t, p.CheckReadiness(context.Background()))

	ds, err := p.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "snap-1", ds.SnapshotID)
	assert.Equal(t, "df_hoy.xlsx", ds.Source)
	assert.Equal(t, clock.Now(), ds.LoadedAt)
	assert.Contains(t, ds.Headers, domain.ColLatitude)
	assert.Contains(t, ds.Headers, domain.ColDate)

	require.Len(t, ds.Incidents, 2)
	for _, inc := range ds.Incidents {
		require.NotNil(t, inc.Geometry)
		assert.InDelta(t, inc.Longitude, inc.Geometry.X(), 0)
		assert.InDelta(t, inc.Latitude, inc.Geometry.Y(), 0)
	}
	assert.InDelta(t, -12.10, ds.Incidents[1].Latitude, 0)

	wantDropped := []domain.DroppedRow{
		{Row: 2, Reason: domain.DropLatitude, RawLatitude: "N/A", RawLongitude: "-77.10"},
		{Row: 4, Reason: domain.DropCoordinates, RawLatitude: "", RawLongitude: "abc"},
	}
	if diff := cmp.Diff(wantDropped, ds.Dropped); diff != "" {
		t.Errorf("dropped mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 2, ds.Summary.Total)
	assert.Equal(t, 2, ds.Summary.Dropped)
	assert.Equal(t, []domain.Count{{Name: "INCENDIO", Count: 2}}, ds.Summary.ByType)

	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Builds), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.SourceRows), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Incidents), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.DroppedRows.WithLabelValues("latitude")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.DroppedRows.WithLabelValues("longitude")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.DroppedRows.WithLabelValues("coordinates")), 0)
}

func TestPipeline_Build_MissingFile(t *testing.T) {
	src := &mockSource{err: fmt.Errorf("%w: %w", domain.ErrSourceNotFound, fs.ErrNotExist)}
	metrics := newTestMetrics()

	p := newPipeline(src, nil, metrics)

	ds, err := p.Build(context.Background())
	require.Error(t, err)
	assert.Nil(t, ds)
	assert.True(t, errors.Is(err, domain.ErrSourceNotFound))
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.BuildErrors.WithLabelValues("not_found")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.BuildErrors.WithLabelValues("failed")), 0)
}

func TestPipeline_Build_ReadFailure(t *testing.T) {
	src := &mockSource{err: errors.New("open workbook: zip: not a valid zip file")}
	metrics := newTestMetrics()

	p := newPipeline(src, nil, metrics)

	_, err := p.Build(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrSourceNotFound))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.BuildErrors.WithLabelValues("failed")), 0)
}

func TestPipeline_Build_PublishesOncePerSnapshot(t *testing.T) {
	now := time.Date(2024, time.March, 15, 15, 0, 0, 0, time.UTC)
	src := &mockSource{snap: snapshot("snap-1", now)}
	pub := &mockPublisher{}
	metrics := newTestMetrics()

	p := newPipeline(src, pub, metrics)
	startExport(t, p)

	for range 3 {
		_, err := p.Build(context.Background())
		require.NoError(t, err)
	}
	assert.Eventually(t, func() bool {
		return len(pub.Published()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"snap-1"}, pub.Published())

	src.snap = snapshot("snap-2", now.Add(time.Hour))
	_, err := p.Build(context.Background())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(pub.Published()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"snap-1", "snap-2"}, pub.Published())
	assert.Equal(t, 2, pub.Calls())
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.PublishedMessages), 0)
}

func TestPipeline_Run_PublishRetries(t *testing.T) {
	src := &mockSource{snap: snapshot("snap-1", time.Now())}
	pub := &mockPublisher{failTimes: 1}
	metrics := newTestMetrics()

	p := newPipeline(src, pub, metrics)
	startExport(t, p)

	_, err := p.Build(context.Background())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(pub.Published()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, pub.Calls())
	assert.Equal(t, []string{"snap-1"}, pub.Published())
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PublishErrors), 0)
}

func TestPipeline_Run_FailedSnapshotIsNotRetriedPerBuild(t *testing.T) {
	now := time.Now()
	src := &mockSource{snap: snapshot("snap-1", now)}
	pub := &mockPublisher{failTimes: 2}
	metrics := newTestMetrics()

	p := newPipeline(src, pub, metrics)
	startExport(t, p)

	ds, err := p.Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ds)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.PublishErrors) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, pub.Calls())
	assert.Empty(t, pub.Published())

	for range 5 {
		_, err = p.Build(context.Background())
		require.NoError(t, err)
	}
	assert.Never(t, func() bool {
		return pub.Calls() > 2
	}, 300*time.Millisecond, 20*time.Millisecond)

	// A new snapshot, e.g. after a reload, is exported again.
	src.snap = snapshot("snap-2", now.Add(time.Minute))
	_, err = p.Build(context.Background())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(pub.Published()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"snap-2"}, pub.Published())
}

func TestPipeline_Build_DoesNotWaitForPublisher(t *testing.T) {
	now := time.Now()
	src := &mockSource{snap: snapshot("snap-1", now)}
	pub := &blockingPublisher{started: make(chan string, 4), release: make(chan struct{})}

	p := newPipeline(src, pub, newTestMetrics())
	startExport(t, p)

	build := func(id string, at time.Time) {
		t.Helper()
		src.snap = snapshot(id, at)
		start := time.Now()
		_, err := p.Build(context.Background())
		require.NoError(t, err)
		assert.Less(t, time.Since(start), 100*time.Millisecond, "build of %s waited on the publisher", id)
	}

	build("snap-1", now)
	select {
	case id := <-pub.started:
		require.Equal(t, "snap-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("export loop never picked up snap-1")
	}

	// snap-1 is stuck in the publisher; later builds still return at once.
	build("snap-2", now.Add(time.Minute))
	build("snap-3", now.Add(2*time.Minute))

	close(pub.release)

	// snap-2 was superseded by snap-3 while waiting.
	assert.Eventually(t, func() bool {
		return len(pub.Published()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"snap-1", "snap-3"}, pub.Published())
}

func TestPipeline_Build_WithoutExportLoop(t *testing.T) {
	now := time.Now()
	src := &mockSource{}
	pub := &mockPublisher{}
	p := newPipeline(src, pub, newTestMetrics())

	for i := range 3 {
		src.snap = snapshot(fmt.Sprintf("snap-%d", i), now.Add(time.Duration(i)*time.Minute))
		_, err := p.Build(context.Background())
		require.NoError(t, err)
	}
	assert.Zero(t, pub.Calls())
}

func TestPipeline_Run_ReturnsWithoutPublisher(t *testing.T) {
	p := newPipeline(&mockSource{}, nil, newTestMetrics())

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run blocked with export disabled")
	}
}

func TestPipeline_Invalidate(t *testing.T) {
	src := &mockSource{snap: snapshot("snap-1", time.Now())}
	p := newPipeline(src, nil, newTestMetrics())

	p.Invalidate()

	assert.Equal(t, []string{"df_hoy.xlsx"}, src.invalidated)
	assert.Equal(t, "df_hoy.xlsx", p.Path())
}

func TestPipeline_Build_EmptyTable(t *testing.T) {
	src := &mockSource{snap: &domain.Snapshot{ID: "empty", Table: &domain.Table{}}}
	p := newPipeline(src, nil, newTestMetrics())

	ds, err := p.Build(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ds.Incidents)
	assert.Empty(t, ds.Dropped)
	assert.Equal(t, 0, ds.Summary.Total)
}
