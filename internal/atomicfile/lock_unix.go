//go:build unix

package atomicfile

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/starford/arkvault/internal/apperr"
)

// acquire takes an exclusive, non-blocking flock on path. The returned
// function releases it.
func acquire(path string) (func() error, error) {
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, apperr.IO("atomicfile: open lock", err)
	}
	if err := unix.Flock(int(fd.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = fd.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("atomicfile: %s is held by another writer: %w", path, apperr.ErrConflict)
		}
		return nil, apperr.IO("atomicfile: flock", err)
	}
	return func() error {
		err := unix.Flock(int(fd.Fd()), unix.LOCK_UN)
		return errors.Join(err, fd.Close())
	}, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
