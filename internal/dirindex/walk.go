package dirindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/starford/arkvault/internal/resource"
)

// arkFolder holds storages and the index database; it is never indexed.
const arkFolder = ".ark"

// walk builds a fresh snapshot. Files whose size and modification time match
// seed keep their identifier without being read.
func (ix *Index) walk(ctx context.Context, seed map[string]Entry) (map[string]Entry, error) {
	out := make(map[string]Entry, len(seed))
	reused := 0

	err := afero.Walk(ix.fs, ix.root, func(p string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			// Files can vanish between readdir and lstat on a live tree.
			if errors.Is(walkErr, fs.ErrNotExist) && p != ix.root {
				return nil
			}
			return walkErr
		}
		rel, err := filepath.Rel(ix.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." && (info.Name() == arkFolder || ix.ignored(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || info.Size() == 0 || ix.ignored(rel) {
			return nil
		}

		if prev, ok := seed[rel]; ok && prev.Size == info.Size() && prev.ModTime.Equal(info.ModTime()) {
			out[rel] = prev
			reused++
			return nil
		}
		id, err := resource.IdentifyFile(ix.fs, p)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		out[rel] = Entry{Path: rel, ID: id, Size: info.Size(), ModTime: info.ModTime()}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dirindex: walk %s: %w", ix.root, err)
	}

	ix.logger.Debug("dirindex: walked",
		slog.String("root", ix.root),
		slog.Int("entries", len(out)),
		slog.Int("reused", reused))
	return out, nil
}

func (ix *Index) ignored(rel string) bool {
	for _, g := range ix.ignore {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
