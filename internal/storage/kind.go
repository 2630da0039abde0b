package storage

import (
	"fmt"
	"strings"

	"github.com/starford/arkvault/internal/apperr"
)

// Kind is the on-disk shape of a Storage.
type Kind int

const (
	// KindFile keeps every resource in one versioned file.
	KindFile Kind = iota
	// KindFolder keeps one versioned file per resource inside a directory.
	KindFolder
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps "file" or "folder" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "file":
		return KindFile, nil
	case "folder":
		return KindFolder, nil
	default:
		return KindFile, &apperr.ParseError{Token: s, Reason: "unknown storage type"}
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
