package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/fire-incident-visor/internal/domain"
	"github.com/couchcryptid/fire-incident-visor/internal/observability"
)

// FileReader reads a source file into a raw table.
type FileReader interface {
	Read(ctx context.Context, path string) (*domain.Table, error)
}

// Cache memoizes reads keyed by path. An entry is reused only while the file's
// modification time and size are unchanged, so replaced files are re-read.
// Concurrent loads of the same snapshot share one read.
type Cache struct {
	reader  FileReader
	entries *snapshotLRU
	group   singleflight.Group
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCache wraps reader with an LRU of at most maxEntries snapshots.
func NewCache(reader FileReader, maxEntries int, metrics *observability.Metrics, logger *slog.Logger) *Cache {
	return &Cache{
		reader:  reader,
		entries: newSnapshotLRU(maxEntries),
		metrics: metrics,
		logger:  logger,
	}
}

// Load returns the current snapshot of path, reading the file only when no
// entry matches its modification time and size.
func (c *Cache) Load(ctx context.Context, path string) (*domain.Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		c.entries.remove(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", domain.ErrSourceNotFound, err)
		}
		return nil, fmt.Errorf("stat source: %w", err)
	}

	if snap, ok := c.entries.get(path); ok && snap.ModTime.Equal(info.ModTime()) && snap.Size == info.Size() {
		c.metrics.LoadCache.WithLabelValues("hit").Inc()
		return snap, nil
	}
	c.metrics.LoadCache.WithLabelValues("miss").Inc()

	key := fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size())
	// Callers waiting on the same key share this read, so one caller's
	// cancellation must not fail the others.
	readCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(key, func() (any, error) {
		table, err := c.reader.Read(readCtx, path)
		if err != nil {
			return nil, err
		}
		c.metrics.SourceReads.Inc()
		snap := &domain.Snapshot{
			ID:      uuid.NewString(),
			Path:    path,
			ModTime: info.ModTime(),
			Size:    info.Size(),
			ReadAt:  domain.Now(),
			Table:   table,
		}
		c.entries.put(path, snap)
		c.logger.Info("source loaded",
			"path", path,
			"snapshot_id", snap.ID,
			"rows", len(table.Rows),
			"mod_time", snap.ModTime,
		)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Snapshot), nil
}

// Invalidate drops the cached snapshot for path.
func (c *Cache) Invalidate(path string) {
	c.entries.remove(path)
}

// Purge drops every cached snapshot.
func (c *Cache) Purge() {
	c.entries.purge()
}
