package dirindex

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"

	"github.com/starford/arkvault/internal/resource"
)

// Entry is one indexed file.
type Entry struct {
	// Path is relative to the index root, slash separated.
	Path    string
	ID      resource.ID
	Size    int64
	ModTime time.Time
}

// Diff lists the paths that changed between two snapshots.
type Diff struct {
	Added    []string
	Deleted  []string
	Modified []string
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Deleted) == 0 && len(d.Modified) == 0
}

// Collision is an identifier produced by more than one path.
type Collision struct {
	ID    resource.ID
	Count int
	Paths []string
}

// Index is a snapshot of a directory tree, refreshed in place by Update.
type Index struct {
	root     string
	fs       afero.Fs
	db       *DB
	ignore   []glob.Glob
	logger   *slog.Logger
	patterns []string

	mu         sync.RWMutex
	entries    map[string]Entry
	counts     map[resource.ID]int
	lastUpdate time.Time
}

// Option configures an Index.
type Option func(*Index)

// WithFs sets the filesystem the index walks. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(ix *Index) { ix.fs = fs }
}

// WithDB persists snapshots to db and seeds the first build from it.
func WithDB(db *DB) Option {
	return func(ix *Index) { ix.db = db }
}

// WithIgnore skips paths matching any of the glob patterns. Patterns are
// matched against slash-separated paths relative to the root, with '/' as
// the separator, so "**.tmp" matches at any depth.
func WithIgnore(patterns ...string) Option {
	return func(ix *Index) { ix.patterns = append(ix.patterns, patterns...) }
}

// WithLogger sets the index logger.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Index) { ix.logger = l }
}

// Build indexes root from scratch, reusing identifiers from the persisted
// snapshot for files whose size and modification time are unchanged.
func Build(ctx context.Context, root string, opts ...Option) (*Index, error) {
	ix := &Index{
		root:   root,
		fs:     afero.NewOsFs(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	for _, p := range ix.patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("dirindex: ignore pattern %q: %w", p, err)
		}
		ix.ignore = append(ix.ignore, g)
	}

	info, err := ix.fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("dirindex: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dirindex: root is not a directory: %s", root)
	}

	seed := map[string]Entry{}
	if ix.db != nil {
		if seed, err = ix.db.AllEntries(ctx); err != nil {
			return nil, err
		}
	}
	entries, err := ix.walk(ctx, seed)
	if err != nil {
		return nil, err
	}
	ix.entries = entries
	ix.counts = countIDs(entries)
	ix.lastUpdate = time.Now()
	return ix, nil
}

// Update re-walks the root and swaps in the new snapshot. On error the
// previous snapshot is left untouched.
func (ix *Index) Update(ctx context.Context) (Diff, error) {
	ix.mu.RLock()
	prev := ix.entries
	ix.mu.RUnlock()

	next, err := ix.walk(ctx, prev)
	if err != nil {
		return Diff{}, err
	}

	var diff Diff
	for p, e := range next {
		old, ok := prev[p]
		switch {
		case !ok:
			diff.Added = append(diff.Added, p)
		case old.ID != e.ID:
			diff.Modified = append(diff.Modified, p)
		}
	}
	for p := range prev {
		if _, ok := next[p]; !ok {
			diff.Deleted = append(diff.Deleted, p)
		}
	}
	slices.Sort(diff.Added)
	slices.Sort(diff.Deleted)
	slices.Sort(diff.Modified)

	counts := countIDs(next)
	ix.mu.Lock()
	ix.entries = next
	ix.counts = counts
	ix.lastUpdate = time.Now()
	ix.mu.Unlock()
	return diff, nil
}

// Persist stores the current snapshot. Without a DB it is a no-op.
func (ix *Index) Persist(ctx context.Context) error {
	if ix.db == nil {
		return nil
	}
	ix.mu.RLock()
	entries := ix.entries
	ix.mu.RUnlock()
	return ix.db.ReplaceEntries(ctx, entries)
}

// Root returns the indexed directory.
func (ix *Index) Root() string { return ix.root }

// Size returns the number of indexed paths.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// LastUpdate returns when the snapshot was last refreshed.
func (ix *Index) LastUpdate() time.Time {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.lastUpdate
}

// Lookup returns the identifier indexed for path.
func (ix *Index) Lookup(path string) (resource.ID, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.entries[path]
	return e.ID, ok
}

// Paths returns the sorted paths that produced id.
func (ix *Index) Paths(id resource.ID) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []string
	for p, e := range ix.entries {
		if e.ID == id {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

// Collisions returns every identifier produced by more than one path,
// ordered by identifier.
func (ix *Index) Collisions() []Collision {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	byID := make(map[resource.ID][]string)
	for p, e := range ix.entries {
		if ix.counts[e.ID] > 1 {
			byID[e.ID] = append(byID[e.ID], p)
		}
	}
	out := make([]Collision, 0, len(byID))
	for id, paths := range byID {
		slices.Sort(paths)
		out = append(out, Collision{ID: id, Count: len(paths), Paths: paths})
	}
	slices.SortFunc(out, func(a, b Collision) int { return a.ID.Compare(b.ID) })
	return out
}

func countIDs(entries map[string]Entry) map[resource.ID]int {
	counts := make(map[resource.ID]int, len(entries))
	for _, e := range entries {
		counts[e.ID]++
	}
	return counts
}
