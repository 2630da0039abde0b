// Package identity persists the per-machine application identifier used as
// the writer token of versioned files.
package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/arkvault/internal/apperr"
)

// FileName is the identity file inside the identity directory.
const FileName = "app_id"

// Load returns the identifier stored in dir, creating it on first use.
func Load(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	id, err := read(path)
	if !errors.Is(err, fs.ErrNotExist) {
		return id, err
	}
	return write(dir, path, uuid.NewString())
}

func read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	if err != nil {
		return "", apperr.IO("identity: read", err)
	}
	id, err := uuid.ParseBytes([]byte(strings.TrimSpace(string(data))))
	if err != nil {
		return "", fmt.Errorf("identity: %s: %w: %v", path, apperr.ErrCorrupt, err)
	}
	return id.String(), nil
}

// write stores id at path unless another process got there first, and
// returns whichever identifier ends up on disk.
func write(dir, path, id string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.IO("identity: mkdir", err)
	}
	tmp, err := os.CreateTemp(dir, "."+FileName+".tmp-*")
	if err != nil {
		return "", apperr.IO("identity: create temp", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(id + "\n"); err != nil {
		tmp.Close()
		return "", apperr.IO("identity: write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", apperr.IO("identity: sync", err)
	}
	if err := tmp.Close(); err != nil {
		return "", apperr.IO("identity: close", err)
	}
	// Another process may have won the race; keep its identifier.
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return read(path)
		}
		if err := os.Rename(tmp.Name(), path); err != nil {
			return "", apperr.IO("identity: rename", err)
		}
	}
	return id, nil
}
