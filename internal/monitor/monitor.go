// Package monitor builds a directory index and keeps it fresh, reporting the
// paths added, deleted and modified on every refresh.
package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/starford/arkvault/internal/dirindex"
)

// Index is the directory index driven by the loop.
type Index interface {
	Size() int
	Collisions() []dirindex.Collision
	LastUpdate() time.Time
	Update(ctx context.Context) (dirindex.Diff, error)
	Persist(ctx context.Context) error
}

// BuildFunc computes the initial snapshot of root.
type BuildFunc func(ctx context.Context, root string) (Index, error)

// EventCallback is called for every path in a refresh diff.
// kind is one of "added", "deleted", "modified".
type EventCallback func(kind string, path string)

// Config selects the monitored root and mode.
type Config struct {
	Root string
	// Interval between refreshes. Zero runs the one-shot collision report.
	Interval time.Duration
	// Watch ends the sleep early when the filesystem reports changes.
	Watch bool
}

// Monitor runs the build and refresh loop.
type Monitor struct {
	cfg     Config
	build   BuildFunc
	out     io.Writer
	logger  *slog.Logger
	cb      EventCallback
	metrics *Metrics

	mu    sync.RWMutex
	index Index
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithOutput sets where reports are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(m *Monitor) { m.out = w }
}

// WithLogger sets the monitor logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithCallback registers cb for refresh diffs.
func WithCallback(cb EventCallback) Option {
	return func(m *Monitor) { m.cb = cb }
}

// WithMetrics records refresh metrics into met.
func WithMetrics(met *Metrics) Option {
	return func(m *Monitor) { m.metrics = met }
}

// New creates a Monitor.
func New(cfg Config, build BuildFunc, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:     cfg,
		build:   build,
		out:     os.Stdout,
		logger:  slog.Default(),
		metrics: NewMetrics(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Index returns the current index, or nil before the build completes.
func (m *Monitor) Index() Index {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index
}

// Run builds the index and then either prints the collision report (no
// interval) or refreshes it until ctx is cancelled. A build failure is
// returned; refresh failures are reported and the loop continues.
func (m *Monitor) Run(ctx context.Context) error {
	fmt.Fprintf(m.out, "Building index of folder %s\n", m.cfg.Root)
	start := time.Now()
	ix, err := m.build(ctx, m.cfg.Root)
	if err != nil {
		fmt.Fprintf(m.out, "Failure: %v\n", err)
		return fmt.Errorf("monitor: build %s: %w", m.cfg.Root, err)
	}
	fmt.Fprintf(m.out, "Build succeeded in %s\n\n", time.Since(start))

	m.mu.Lock()
	m.index = ix
	m.mu.Unlock()
	m.metrics.observe(ix)
	m.logger.Info("monitor: index built",
		slog.String("root", m.cfg.Root),
		slog.Int("entries", ix.Size()),
		slog.Duration("duration", time.Since(start)))

	if m.cfg.Interval <= 0 {
		m.report(ix)
		return nil
	}

	if err := ix.Persist(ctx); err != nil {
		m.logger.Warn("monitor: persist after build failed", slog.String("error", err.Error()))
	}
	m.loop(ctx, ix)
	return nil
}

func (m *Monitor) report(ix Index) {
	fmt.Fprintf(m.out, "Here are %s entries in the index\n", humanize.Comma(int64(ix.Size())))
	for _, c := range ix.Collisions() {
		fmt.Fprintf(m.out, "Id %s calculated %d times\n", c.ID, c.Count)
	}
}

func (m *Monitor) loop(ctx context.Context, ix Index) {
	var wake <-chan struct{}
	if m.cfg.Watch {
		w, err := newWatcher(m.cfg.Root, m.logger)
		if err != nil {
			m.logger.Warn("monitor: watch unavailable, polling only", slog.String("error", err.Error()))
		} else {
			defer w.Close()
			wake = w.C
		}
	}

	m.logger.Info("monitor: started",
		slog.String("root", m.cfg.Root),
		slog.Duration("interval", m.cfg.Interval),
		slog.Bool("watch", wake != nil))

	timer := time.NewTimer(m.cfg.Interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor: stopped")
			return
		case <-timer.C:
		case <-wake:
			timer.Stop()
		}
		m.cycle(ctx, ix)
		timer.Reset(m.cfg.Interval)
	}
}

// cycle runs one refresh. The snapshot is persisted before the diff is
// printed, so a crash in between only loses output.
func (m *Monitor) cycle(ctx context.Context, ix Index) {
	start := time.Now()
	diff, err := ix.Update(ctx)
	if err != nil && ctx.Err() != nil {
		m.logger.Debug("monitor: update interrupted", slog.String("error", err.Error()))
		return
	}
	if err != nil {
		m.metrics.UpdateFailures.Inc()
		m.logger.Warn("monitor: update failed", slog.String("error", err.Error()))
		fmt.Fprintf(m.out, "Oops! %v\n", err)
		return
	}
	if err := ix.Persist(ctx); err != nil {
		if ctx.Err() != nil {
			m.logger.Debug("monitor: persist interrupted", slog.String("error", err.Error()))
			return
		}
		m.metrics.UpdateFailures.Inc()
		m.logger.Warn("monitor: persist failed", slog.String("error", err.Error()))
		fmt.Fprintf(m.out, "Oops! could not store index: %v\n", err)
	}
	elapsed := time.Since(start)
	m.metrics.UpdateSeconds.Observe(elapsed.Seconds())
	m.metrics.observe(ix)

	fmt.Fprintf(m.out, "Updating succeeded in %s\n", elapsed)
	m.printPaths("Deleted", "deleted", diff.Deleted)
	m.printPaths("Added", "added", diff.Added)
	m.printPaths("Modified", "modified", diff.Modified)
	fmt.Fprintln(m.out)
}

func (m *Monitor) printPaths(label, kind string, paths []string) {
	if len(paths) == 0 {
		return
	}
	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = strconv.Quote(p)
	}
	fmt.Fprintf(m.out, "%s: [%s]\n", label, strings.Join(quoted, ", "))
	if m.cb != nil {
		for _, p := range paths {
			m.cb(kind, p)
		}
	}
}
