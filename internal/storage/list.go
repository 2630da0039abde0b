package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/starford/arkvault/internal/apperr"
	"github.com/starford/arkvault/internal/atomicfile"
	"github.com/starford/arkvault/internal/encoding"
	"github.com/starford/arkvault/internal/resource"
)

// summaryLimit bounds raw content shown on a listing line.
const summaryLimit = 64

// Entry is one line of a Report.
type Entry struct {
	ID    resource.ID
	Value encoding.Value

	// Version and Token are set for versioned listings only.
	Version uint64
	Token   string
}

// Report is the result of List.
type Report struct {
	Versions bool
	Entries  []Entry
}

// String renders one line per entry.
func (r *Report) String() string {
	var b strings.Builder
	for i, e := range r.Entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		if r.Versions {
			fmt.Fprintf(&b, "%s [v%d %s]: %s", e.ID, e.Version, e.Token, e.Value.Summary(summaryLimit))
		} else {
			fmt.Fprintf(&b, "%s: %s", e.ID, e.Value.Summary(summaryLimit))
		}
	}
	return b.String()
}

// List reports every resource in the storage. With withVersions, every
// retained generation gets its own line, ordered by identifier and then
// ascending version. Folder storages must be loaded first.
func (s *Storage) List(withVersions bool) (*Report, error) {
	report := &Report{Versions: withVersions}

	switch s.kind {
	case KindFolder:
		ids, err := s.IDs()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			entries, err := s.folderEntries(id, withVersions)
			if err != nil {
				return nil, err
			}
			report.Entries = append(report.Entries, entries...)
		}
	case KindFile:
		entries, err := s.fileEntries(withVersions)
		if err != nil {
			return nil, err
		}
		report.Entries = entries
	}
	return report, nil
}

func (s *Storage) folderEntries(id resource.ID, withVersions bool) ([]Entry, error) {
	if !withVersions {
		v, err := s.Read(id)
		if err != nil {
			return nil, err
		}
		return []Entry{{ID: id, Value: v}}, nil
	}

	gens, err := s.file(id).Generations()
	if err != nil {
		return nil, wrap("list "+id.String(), err)
	}
	out := make([]Entry, 0, len(gens))
	for _, g := range gens {
		out = append(out, Entry{
			ID:      id,
			Value:   encoding.Decode(g.Bytes()),
			Version: g.Version,
			Token:   g.Token(),
		})
	}
	return out, nil
}

func (s *Storage) fileEntries(withVersions bool) ([]Entry, error) {
	af := atomicfile.New(s.root, s.fileOpts...)

	var gens []*atomicfile.Generation
	if withVersions {
		all, err := af.Generations()
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, wrap("list", err)
		}
		gens = all
	} else {
		cur, err := af.Load()
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, wrap("list", err)
		}
		if cur != nil {
			gens = []*atomicfile.Generation{cur}
		}
	}

	var out []Entry
	for _, g := range gens {
		doc, err := encoding.DecodeDocument(g.Bytes())
		if err != nil {
			return nil, wrap("list", err)
		}
		for _, key := range doc.Keys() {
			id, err := resource.Parse(key)
			if err != nil {
				s.logger.Warn("storage: skipped key", slog.String("key", key), slog.String("error", err.Error()))
				continue
			}
			v, _, err := doc.Get(key)
			if err != nil {
				return nil, wrap("list "+key, err)
			}
			e := Entry{ID: id, Value: v}
			if withVersions {
				e.Version, e.Token = g.Version, g.Token()
			}
			out = append(out, e)
		}
	}

	slices.SortStableFunc(out, func(a, b Entry) int {
		if c := a.ID.Compare(b.ID); c != 0 {
			return c
		}
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		}
		return 0
	})
	return out, nil
}
