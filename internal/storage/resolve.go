package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/arkvault/internal/apperr"
)

// ArkFolder is the per-root directory holding named storages and the index.
const ArkFolder = ".ark"

// Alias is a named storage location relative to the ark folder of a root.
type Alias struct {
	Path string `yaml:"path"`
	Kind Kind   `yaml:"kind"`
}

// DefaultAliases returns the well-known storages of a root.
func DefaultAliases() map[string]Alias {
	return map[string]Alias{
		"tags":       {Path: "user/tags", Kind: KindFile},
		"scores":     {Path: "user/scores", Kind: KindFile},
		"stats":      {Path: "stats", Kind: KindFolder},
		"properties": {Path: "user/properties", Kind: KindFolder},
		"metadata":   {Path: "cache/metadata", Kind: KindFolder},
		"previews":   {Path: "cache/previews", Kind: KindFolder},
		"thumbnails": {Path: "cache/thumbnails", Kind: KindFolder},
	}
}

// Location is a resolved storage reference.
type Location struct {
	Path string
	Kind Kind
	// Fixed is true when the kind is dictated by an alias and must not be
	// overridden by the caller.
	Fixed bool
}

// Resolver maps user-supplied storage references to locations.
type Resolver struct {
	Root    string
	Aliases map[string]Alias
}

// Resolve maps name to a Location. Aliases win over paths; an existing
// directory resolves as a folder storage and anything else as a file storage.
func (r Resolver) Resolve(name string) (Location, error) {
	if strings.TrimSpace(name) == "" {
		return Location{}, fmt.Errorf("storage: empty storage name: %w", apperr.ErrInvalidPath)
	}
	if a, ok := r.Aliases[strings.ToLower(name)]; ok {
		rel := filepath.Clean(filepath.FromSlash(a.Path))
		if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return Location{}, fmt.Errorf("storage: alias %s escapes the ark folder: %w", name, apperr.ErrInvalidPath)
		}
		return Location{Path: filepath.Join(r.Root, ArkFolder, rel), Kind: a.Kind, Fixed: true}, nil
	}

	info, err := os.Stat(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Location{Path: name, Kind: KindFile}, nil
	case err != nil:
		return Location{}, apperr.IO("storage: stat "+name, err)
	case info.IsDir():
		return Location{Path: name, Kind: KindFolder}, nil
	default:
		return Location{Path: name, Kind: KindFile}, nil
	}
}

// Open resolves name and constructs its Storage. kind overrides the
// resolved kind unless the location is fixed by an alias.
func (r Resolver) Open(name string, kind *Kind, opts ...Option) (*Storage, error) {
	loc, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	if kind != nil && !loc.Fixed {
		loc.Kind = *kind
	}
	return New(loc.Path, loc.Kind, opts...)
}
