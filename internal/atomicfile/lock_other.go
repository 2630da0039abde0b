//go:build !unix

package atomicfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/starford/arkvault/internal/apperr"
)

// acquire creates path exclusively. A lock file left behind by a crashed
// writer must be removed by hand.
func acquire(path string) (func() error, error) {
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("atomicfile: %s is held by another writer: %w", path, apperr.ErrConflict)
	}
	if err != nil {
		return nil, apperr.IO("atomicfile: create lock", err)
	}
	return func() error {
		return errors.Join(fd.Close(), os.Remove(path))
	}, nil
}

func syncDir(string) error { return nil }
