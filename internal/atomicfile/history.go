package atomicfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/starford/arkvault/internal/apperr"
)

func historyName(gen *Generation) string {
	return fmt.Sprintf("%020d_%s_%d", gen.Version, gen.Writer, gen.ModifiedAt.UnixNano())
}

// parseHistoryName splits "<version>_<writer>_<unix-nanos>".
func parseHistoryName(name string) (version uint64, writer string, at time.Time, err error) {
	parts := strings.Split(name, "_")
	if len(parts) != 3 {
		return 0, "", time.Time{}, fmt.Errorf("history entry %q: %w", name, apperr.ErrCorrupt)
	}
	version, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, "", time.Time{}, fmt.Errorf("history entry %q: version: %w", name, apperr.ErrCorrupt)
	}
	nanos, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, "", time.Time{}, fmt.Errorf("history entry %q: timestamp: %w", name, apperr.ErrCorrupt)
	}
	return version, parts[1], time.Unix(0, nanos), nil
}

// retainGeneration records the freshly committed generation in history and
// prunes it down to the retention limit.
func (f *File) retainGeneration(gen *Generation) error {
	dir := f.historyDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(dir, historyName(gen))
	if err := os.Link(f.path, target); err != nil {
		if err := copyFile(f.path, target); err != nil {
			return err
		}
	}
	if f.retain == 0 {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	// Zero-padded versions sort lexically.
	slices.Sort(names)
	for len(names) > f.retain {
		if err := os.Remove(filepath.Join(dir, names[0])); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		names = names[1:]
	}
	return nil
}

// Generations lists the retained generations in ascending version order.
// The current generation is always included, even when retaining it in the
// history directory failed or never happened.
func (f *File) Generations() ([]*Generation, error) {
	entries, err := os.ReadDir(f.historyDir())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.IO("atomicfile: read history", err)
	}

	var out []*Generation
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || e.IsDir() {
			continue
		}
		version, writer, at, err := parseHistoryName(name)
		if err != nil {
			return nil, fmt.Errorf("atomicfile: %s: %w", f.path, err)
		}
		p := filepath.Join(f.historyDir(), name)
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, apperr.IO("atomicfile: read generation", err)
		}
		gen, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("atomicfile: %s: %w", p, err)
		}
		gen.Version, gen.Writer, gen.ModifiedAt, gen.Path = version, writer, at, p
		out = append(out, gen)
	}
	slices.SortFunc(out, func(a, b *Generation) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		}
		return a.ModifiedAt.Compare(b.ModifiedAt)
	})

	cur, err := f.Load()
	switch {
	case err == nil:
		if len(out) == 0 || out[len(out)-1].Version < cur.Version {
			out = append(out, cur)
		}
	case errors.Is(err, apperr.ErrNotFound):
	default:
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("atomicfile: %s has no generations: %w", f.path, apperr.ErrNotFound)
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".copy-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
