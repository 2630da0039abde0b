// Package storage keeps per-resource values in either a single versioned
// file or a folder holding one versioned file per resource.
package storage

import (
	"github.com/starford/arkvault/internal/encoding"
	"github.com/starford/arkvault/internal/resource"
)

// Provider is the interface for per-resource storage operations.
type Provider interface {
	// Append merges content into the value stored for id.
	Append(id resource.ID, content []byte, format encoding.Format) error
	// Insert replaces the value stored for id.
	Insert(id resource.ID, content []byte, format encoding.Format) error
	// Read returns the decoded value stored for id.
	Read(id resource.ID) (encoding.Value, error)
	// Remove deletes the value stored for id.
	Remove(id resource.ID) error
	// Load enumerates the storage contents; required before List.
	Load() error
	// List reports every resource, optionally one line per retained generation.
	List(withVersions bool) (*Report, error)
}

// Verify *Storage satisfies Provider at compile time.
var _ Provider = (*Storage)(nil)
