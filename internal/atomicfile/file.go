// Package atomicfile implements a versioned file whose updates are
// all-or-nothing.
//
// A logical file at path P is a regular file whose first line is the
// generation marker
//
//	arkgen/1 <version> <writer> <unix-nanos>
//
// followed by the content bytes. Every write goes to a temp file next to P,
// is fsynced, and then renamed onto P; the rename is the commit point.
// Committed generations are retained under ".<base>.versions/" with names of
// the form "<version:020d>_<writer>_<unix-nanos>".
//
// Read-modify-write units are serialized by a non-blocking advisory lock on
// ".<base>.lock". A writer that finds the lock held fails with
// apperr.ErrConflict instead of waiting; callers decide whether to retry.
package atomicfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/starford/arkvault/internal/apperr"
)

const (
	markerTag = "arkgen/1"

	// InitialVersion is the version of the first generation written to a path.
	InitialVersion uint64 = 1

	// DefaultWriter is used when no writer identity is configured.
	DefaultWriter = "anonymous"
)

// Generation is one fully written version of a File.
type Generation struct {
	Version    uint64
	Writer     string
	ModifiedAt time.Time
	// Path is the backing object this generation was read from.
	Path string

	data []byte
}

// Bytes returns the generation content without the marker line.
func (g *Generation) Bytes() []byte { return g.data }

// Reader returns a reader over the generation content.
func (g *Generation) Reader() io.Reader { return bytes.NewReader(g.data) }

// Token returns the writer/timestamp pair identifying the generation on disk.
func (g *Generation) Token() string {
	return g.Writer + "/" + strconv.FormatInt(g.ModifiedAt.UnixNano(), 10)
}

// File is a versioned atomic file rooted at a single path.
type File struct {
	path   string
	writer string
	retain int
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a File.
type Option func(*File)

// WithWriter sets the writer identity recorded in every generation.
// Characters that are unsafe in file names are replaced with '-'.
func WithWriter(id string) Option {
	return func(f *File) { f.writer = sanitizeWriter(id) }
}

// WithRetain keeps only the newest n generations in history. Zero keeps all.
func WithRetain(n int) Option {
	return func(f *File) {
		if n >= 0 {
			f.retain = n
		}
	}
}

// WithClock overrides the wall clock used for generation timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *File) { f.now = now }
}

// WithLogger sets the logger used for non-fatal history maintenance problems.
func WithLogger(l *slog.Logger) Option {
	return func(f *File) { f.logger = l }
}

// New returns a File for path. Nothing is touched on disk until the first write.
func New(path string, opts ...Option) *File {
	f := &File{
		path:   filepath.Clean(path),
		writer: DefaultWriter,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the location of the current generation.
func (f *File) Path() string { return f.path }

func (f *File) dir() string  { return filepath.Dir(f.path) }
func (f *File) base() string { return filepath.Base(f.path) }

func (f *File) lockPath() string {
	return filepath.Join(f.dir(), "."+f.base()+".lock")
}

func (f *File) historyDir() string {
	return filepath.Join(f.dir(), "."+f.base()+".versions")
}

// Load returns the current durable generation.
func (f *File) Load() (*Generation, error) {
	info, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("atomicfile: load %s: %w", f.path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.IO("atomicfile: stat "+f.path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("atomicfile: %s is a directory: %w", f.path, apperr.ErrCorrupt)
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("atomicfile: load %s: %w", f.path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.IO("atomicfile: read "+f.path, err)
	}
	gen, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("atomicfile: %s: %w", f.path, err)
	}
	gen.Path = f.path
	return gen, nil
}

// Modify replaces the current content with transform(current) as one
// generation. A missing file is presented to transform as nil content.
// If another writer holds the file, Modify fails with apperr.ErrConflict
// without calling transform.
func (f *File) Modify(transform func(current []byte) ([]byte, error)) (*Generation, error) {
	if err := os.MkdirAll(f.dir(), 0o755); err != nil {
		return nil, apperr.IO("atomicfile: mkdir", err)
	}
	unlock, err := acquire(f.lockPath())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			f.logger.Warn("atomicfile: unlock failed", slog.String("path", f.path), slog.String("error", err.Error()))
		}
	}()

	var (
		base []byte
		prev uint64
	)
	cur, err := f.Load()
	switch {
	case err == nil:
		base, prev = cur.data, cur.Version
	case errors.Is(err, apperr.ErrNotFound):
	default:
		return nil, err
	}

	out, err := transform(base)
	if err != nil {
		return nil, err
	}

	version := InitialVersion
	if cur != nil {
		version = prev + 1
	}
	gen := &Generation{
		Version:    version,
		Writer:     f.writer,
		ModifiedAt: f.now(),
		Path:       f.path,
		data:       out,
	}
	if err := f.commit(gen, prev); err != nil {
		return nil, err
	}
	if err := f.retainGeneration(gen); err != nil {
		f.logger.Warn("atomicfile: retain generation failed",
			slog.String("path", f.path),
			slog.Uint64("version", gen.Version),
			slog.String("error", err.Error()))
	}
	return gen, nil
}

// Overwrite unconditionally replaces the content.
func (f *File) Overwrite(data []byte) (*Generation, error) {
	return f.Modify(func([]byte) ([]byte, error) { return data, nil })
}

// commit writes gen to a temp file and renames it onto the path. prev is
// the version observed when the unit started; if the path moved on in the
// meantime the write is abandoned with ErrConflict.
func (f *File) commit(gen *Generation, prev uint64) error {
	tmp, err := os.CreateTemp(f.dir(), "."+f.base()+".tmp-*")
	if err != nil {
		return apperr.IO("atomicfile: create temp", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(encode(gen)); err != nil {
		return apperr.IO("atomicfile: write temp", err)
	}
	if err := tmp.Sync(); err != nil {
		return apperr.IO("atomicfile: fsync", err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.IO("atomicfile: close temp", err)
	}

	seen, err := f.currentVersion()
	if err != nil {
		return err
	}
	if seen != prev {
		return fmt.Errorf("atomicfile: %s moved from version %d to %d: %w", f.path, prev, seen, apperr.ErrConflict)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return apperr.IO("atomicfile: rename", err)
	}
	success = true

	if err := syncDir(f.dir()); err != nil {
		return apperr.IO("atomicfile: fsync dir", err)
	}
	return nil
}

// currentVersion returns the version on disk, or 0 when there is none.
func (f *File) currentVersion() (uint64, error) {
	gen, err := f.Load()
	if errors.Is(err, apperr.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return gen.Version, nil
}

// Remove deletes the current generation and its history. The next write
// starts again from InitialVersion.
func (f *File) Remove() error {
	unlock, err := acquire(f.lockPath())
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("atomicfile: remove %s: %w", f.path, apperr.ErrNotFound)
	}
	if err != nil {
		return err
	}
	// The lock file stays: unlinking it would let a writer that already
	// opened it lock an orphaned inode.
	defer func() { _ = unlock() }()

	if err := os.Remove(f.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("atomicfile: remove %s: %w", f.path, apperr.ErrNotFound)
		}
		return apperr.IO("atomicfile: remove", err)
	}
	if err := os.RemoveAll(f.historyDir()); err != nil {
		return apperr.IO("atomicfile: remove history", err)
	}
	return nil
}

func encode(gen *Generation) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d %s %d\n", markerTag, gen.Version, gen.Writer, gen.ModifiedAt.UnixNano())
	buf.Write(gen.data)
	return buf.Bytes()
}

func decode(data []byte) (*Generation, error) {
	line, rest, ok := bytes.Cut(data, []byte{'\n'})
	if !ok {
		return nil, fmt.Errorf("missing generation marker: %w", apperr.ErrCorrupt)
	}
	fields := strings.Fields(string(line))
	if len(fields) != 4 || fields[0] != markerTag {
		return nil, fmt.Errorf("bad generation marker %q: %w", line, apperr.ErrCorrupt)
	}
	version, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil || version < InitialVersion {
		return nil, fmt.Errorf("bad generation version %q: %w", fields[1], apperr.ErrCorrupt)
	}
	nanos, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad generation timestamp %q: %w", fields[3], apperr.ErrCorrupt)
	}
	return &Generation{
		Version:    version,
		Writer:     fields[2],
		ModifiedAt: time.Unix(0, nanos),
		data:       rest,
	}, nil
}

func sanitizeWriter(id string) string {
	id = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '-'
		}
	}, id)
	if id == "" {
		return DefaultWriter
	}
	return id
}
