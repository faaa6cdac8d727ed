package loader

import (
	"slices"
	"sync"

	"github.com/couchcryptid/fire-incident-visor/internal/domain"
)

// snapshotLRU holds the most recently used snapshots, newest first. The
// dashboard reads one or two files, so a linear scan over a short slice is
// enough.
type snapshotLRU struct {
	mu      sync.Mutex
	limit   int
	entries []cachedSnapshot
}

type cachedSnapshot struct {
	path string
	snap *domain.Snapshot
}

func newSnapshotLRU(limit int) *snapshotLRU {
	return &snapshotLRU{limit: max(limit, 1)}
}

func (l *snapshotLRU) indexOf(path string) int {
	return slices.IndexFunc(l.entries, func(e cachedSnapshot) bool { return e.path == path })
}

// get returns the snapshot for path and marks it most recently used.
func (l *snapshotLRU) get(path string) (*domain.Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(path)
	if i < 0 {
		return nil, false
	}
	e := l.entries[i]
	l.entries = slices.Insert(slices.Delete(l.entries, i, i+1), 0, e)
	return e.snap, true
}

// put stores snap as the most recent entry for path, dropping the least
// recently used entries beyond the limit.
func (l *snapshotLRU) put(path string, snap *domain.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := l.indexOf(path); i >= 0 {
		l.entries = slices.Delete(l.entries, i, i+1)
	}
	l.entries = slices.Insert(l.entries, 0, cachedSnapshot{path: path, snap: snap})
	if len(l.entries) > l.limit {
		clear(l.entries[l.limit:])
		l.entries = l.entries[:l.limit]
	}
}

func (l *snapshotLRU) remove(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := l.indexOf(path); i >= 0 {
		l.entries = slices.Delete(l.entries, i, i+1)
	}
}

func (l *snapshotLRU) purge() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// paths lists cached paths, most recently used first.
func (l *snapshotLRU) paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.path
	}
	return out
}
