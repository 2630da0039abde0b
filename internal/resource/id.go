// Package resource computes content-derived resource identifiers.
package resource

import (
	"bytes"
	"cmp"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
)

// HashSize is the number of BLAKE3 digest bytes kept in an ID.
const HashSize = 16

// ID identifies a byte sequence by its length and truncated BLAKE3 digest.
// Equal content always yields equal IDs, in any process.
type ID struct {
	Size uint64
	Hash [HashSize]byte
}

// Compute returns the ID of data.
func Compute(data []byte) ID {
	sum := blake3.Sum256(data)
	id := ID{Size: uint64(len(data))}
	copy(id.Hash[:], sum[:HashSize])
	return id
}

// Identify streams r through the hasher and returns its ID.
func Identify(r io.Reader) (ID, error) {
	h := blake3.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return ID{}, fmt.Errorf("resource: identify: %w", err)
	}
	id := ID{Size: uint64(n)}
	copy(id.Hash[:], h.Sum(nil)[:HashSize])
	return id, nil
}

// IdentifyFile computes the ID of the file at path on fsys.
func IdentifyFile(fsys afero.Fs, path string) (ID, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return ID{}, fmt.Errorf("resource: open %s: %w", path, err)
	}
	defer f.Close()
	return Identify(f)
}

// String renders the ID as "<size>-<hex digest>".
func (id ID) String() string {
	return strconv.FormatUint(id.Size, 10) + "-" + hex.EncodeToString(id.Hash[:])
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Compare orders IDs by size, then digest.
func (id ID) Compare(other ID) int {
	if c := cmp.Compare(id.Size, other.Size); c != 0 {
		return c
	}
	return bytes.Compare(id.Hash[:], other.Hash[:])
}

// Parse is the inverse of ID.String.
func Parse(s string) (ID, error) {
	sizePart, hashPart, ok := strings.Cut(s, "-")
	if !ok {
		return ID{}, fmt.Errorf("resource: parse %q: missing '-'", s)
	}
	size, err := strconv.ParseUint(sizePart, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("resource: parse %q: size: %w", s, err)
	}
	if len(hashPart) != hex.EncodedLen(HashSize) {
		return ID{}, fmt.Errorf("resource: parse %q: digest must be %d hex chars", s, hex.EncodedLen(HashSize))
	}
	id := ID{Size: size}
	if _, err := hex.Decode(id.Hash[:], []byte(hashPart)); err != nil {
		return ID{}, fmt.Errorf("resource: parse %q: digest: %w", s, err)
	}
	return id, nil
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
