package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/starford/arkvault/internal/apperr"
	"github.com/starford/arkvault/internal/atomicfile"
	"github.com/starford/arkvault/internal/encoding"
	"github.com/starford/arkvault/internal/resource"
)

// Storage holds values keyed by resource identifier under root.
type Storage struct {
	root     string
	kind     Kind
	fileOpts []atomicfile.Option
	logger   *slog.Logger

	mu      sync.RWMutex
	loaded  bool
	entries map[resource.ID]string // folder kind: id -> path
}

// Option configures a Storage.
type Option func(*Storage)

// WithFileOptions passes options to every versioned file the storage opens.
func WithFileOptions(opts ...atomicfile.Option) Option {
	return func(s *Storage) { s.fileOpts = append(s.fileOpts, opts...) }
}

// WithLogger sets the storage logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Storage) { s.logger = l }
}

// New creates a Storage of the given kind at root. root need not exist yet,
// but an existing root must match the kind: a directory for KindFolder and
// a plain file for KindFile.
func New(root string, kind Kind, opts ...Option) (*Storage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", apperr.ErrInvalidPath)
	}
	if kind != KindFile && kind != KindFolder {
		return nil, fmt.Errorf("storage: %s: %w", kind, apperr.ErrInvalidPath)
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, apperr.IO("storage: stat root", err)
	case kind == KindFile && info.IsDir():
		return nil, fmt.Errorf("storage: file storage root is a directory: %s: %w", abs, apperr.ErrInvalidPath)
	case kind == KindFolder && !info.IsDir():
		return nil, fmt.Errorf("storage: folder storage root is not a directory: %s: %w", abs, apperr.ErrInvalidPath)
	}

	s := &Storage{
		root:    abs,
		kind:    kind,
		logger:  slog.Default(),
		entries: make(map[resource.ID]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	// The single file is the whole storage; there is nothing to enumerate.
	s.loaded = kind == KindFile
	return s, nil
}

// Root returns the absolute storage location.
func (s *Storage) Root() string { return s.root }

// Kind returns the storage shape.
func (s *Storage) Kind() Kind { return s.kind }

// Path returns the file holding id's value.
func (s *Storage) Path(id resource.ID) string {
	if s.kind == KindFile {
		return s.root
	}
	return filepath.Join(s.root, id.String())
}

func (s *Storage) file(id resource.ID) *atomicfile.File {
	return atomicfile.New(s.Path(id), s.fileOpts...)
}

// Append merges content into id's value under format.
func (s *Storage) Append(id resource.ID, content []byte, format encoding.Format) error {
	return s.write("append", id, content, format, encoding.Append, (*encoding.Document).Append)
}

// Insert replaces id's value under format.
func (s *Storage) Insert(id resource.ID, content []byte, format encoding.Format) error {
	return s.write("insert", id, content, format, encoding.Insert, (*encoding.Document).Insert)
}

type (
	contentOp  func(encoding.Format, []byte, []byte) ([]byte, error)
	documentOp func(*encoding.Document, encoding.Format, string, []byte) error
)

func (s *Storage) write(op string, id resource.ID, content []byte, format encoding.Format, onContent contentOp, onDocument documentOp) error {
	var transform func([]byte) ([]byte, error)

	switch s.kind {
	case KindFile:
		transform = func(current []byte) ([]byte, error) {
			doc, err := encoding.DecodeDocument(current)
			if err != nil {
				return nil, err
			}
			if err := onDocument(doc, format, id.String(), content); err != nil {
				return nil, err
			}
			return doc.Encode()
		}
	case KindFolder:
		if err := os.MkdirAll(s.root, 0o755); err != nil {
			return apperr.IO("storage: mkdir", err)
		}
		transform = func(current []byte) ([]byte, error) {
			return onContent(format, current, content)
		}
	}

	gen, err := s.file(id).Modify(transform)
	if err != nil {
		return wrap(op+" "+id.String(), err)
	}

	if s.kind == KindFolder {
		s.mu.Lock()
		if s.loaded {
			s.entries[id] = gen.Path
		}
		s.mu.Unlock()
	}
	s.logger.Debug("storage: written",
		slog.String("op", op),
		slog.String("id", id.String()),
		slog.Uint64("version", gen.Version))
	return nil
}

// Read returns id's current value.
func (s *Storage) Read(id resource.ID) (encoding.Value, error) {
	gen, err := s.file(id).Load()
	if err != nil {
		return encoding.Value{}, wrap("read "+id.String(), err)
	}
	if s.kind == KindFolder {
		return encoding.Decode(gen.Bytes()), nil
	}

	doc, err := encoding.DecodeDocument(gen.Bytes())
	if err != nil {
		return encoding.Value{}, wrap("read "+id.String(), err)
	}
	v, ok, err := doc.Get(id.String())
	if err != nil {
		return encoding.Value{}, wrap("read "+id.String(), err)
	}
	if !ok {
		return encoding.Value{}, fmt.Errorf("storage: read %s: %w", id, apperr.ErrNotFound)
	}
	return v, nil
}

// Remove deletes id's value. For a folder storage the resource file and its
// history are removed; for a file storage the entry is dropped from the
// document in a new generation.
func (s *Storage) Remove(id resource.ID) error {
	if s.kind == KindFolder {
		if err := s.file(id).Remove(); err != nil {
			return wrap("remove "+id.String(), err)
		}
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return nil
	}

	_, err := s.file(id).Modify(func(current []byte) ([]byte, error) {
		doc, err := encoding.DecodeDocument(current)
		if err != nil {
			return nil, err
		}
		if !doc.Delete(id.String()) {
			return nil, apperr.ErrNotFound
		}
		return doc.Encode()
	})
	if err != nil {
		return wrap("remove "+id.String(), err)
	}
	return nil
}

// Load enumerates the resource files of a folder storage. It is a no-op for
// file storages. A folder that does not exist yet loads as empty.
func (s *Storage) Load() error {
	if s.kind == KindFile {
		return nil
	}

	entries, err := os.ReadDir(s.root)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.IO("storage: load "+s.root, err)
	}

	index := make(map[resource.ID]string, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		id, err := resource.Parse(name)
		if err != nil {
			s.logger.Debug("storage: skipped entry", slog.String("name", name), slog.String("error", err.Error()))
			continue
		}
		index[id] = filepath.Join(s.root, name)
	}

	s.mu.Lock()
	s.entries = index
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// IDs returns the resource identifiers in display order. Folder storages
// must be loaded first.
func (s *Storage) IDs() ([]resource.ID, error) {
	if s.kind == KindFile {
		entries, err := s.fileEntries(false)
		if err != nil {
			return nil, err
		}
		ids := make([]resource.ID, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
		return ids, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, fmt.Errorf("storage: %s: %w", s.root, apperr.ErrStorageNotLoaded)
	}
	ids := make([]resource.ID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, resource.ID.Compare)
	return ids, nil
}

func wrap(op string, err error) error {
	if apperr.Known(err) {
		return fmt.Errorf("storage: %s: %w", op, err)
	}
	return apperr.IO("storage: "+op, err)
}
