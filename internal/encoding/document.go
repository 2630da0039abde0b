package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/starford/arkvault/internal/apperr"
)

// Document is the content of a single-file storage: a JSON object whose
// top-level keys are resource identifiers. Each value is a JSON string for
// Raw content or an object of strings for Structured content.
type Document struct {
	entries map[string]json.RawMessage
}

// DecodeDocument parses file-storage content. Empty content is an empty
// document.
func DecodeDocument(data []byte) (*Document, error) {
	d := &Document{entries: make(map[string]json.RawMessage)}
	if len(bytes.TrimSpace(data)) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(data, &d.entries); err != nil || d.entries == nil {
		return nil, fmt.Errorf("encoding: document is not a JSON object: %w", apperr.ErrCorrupt)
	}
	return d, nil
}

// Keys returns the entry keys in sorted order.
func (d *Document) Keys() []string {
	return slices.Sorted(maps.Keys(d.entries))
}

// Len returns the number of entries.
func (d *Document) Len() int { return len(d.entries) }

// Get decodes the value stored under key.
func (d *Document) Get(key string) (Value, bool, error) {
	raw, ok := d.entries[key]
	if !ok {
		return Value{}, false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Value{Format: Raw, Raw: []byte(s)}, true, nil
	}
	if fields, ok := decodeFields(raw); ok {
		return Value{Format: Structured, Fields: fields}, true, nil
	}
	return Value{}, false, fmt.Errorf("encoding: entry %s has unsupported shape: %w", key, apperr.ErrCorrupt)
}

// Append applies Append semantics to the entry under key.
func (d *Document) Append(f Format, key string, input []byte) error {
	return d.apply(f, key, input, Append)
}

// Insert applies Insert semantics to the entry under key.
func (d *Document) Insert(f Format, key string, input []byte) error {
	return d.apply(f, key, input, Insert)
}

func (d *Document) apply(f Format, key string, input []byte, op func(Format, []byte, []byte) ([]byte, error)) error {
	var current []byte
	if raw, ok := d.entries[key]; ok {
		switch f {
		case Raw:
			var s string
			if json.Unmarshal(raw, &s) == nil {
				current = []byte(s)
			}
		case Structured:
			current = raw
		}
	}
	out, err := op(f, current, input)
	if err != nil {
		return err
	}
	if f == Raw {
		out, err = json.Marshal(string(out))
		if err != nil {
			return fmt.Errorf("encoding: marshal: %w", err)
		}
	}
	d.entries[key] = out
	return nil
}

// Delete removes key and reports whether it was present.
func (d *Document) Delete(key string) bool {
	_, ok := d.entries[key]
	delete(d.entries, key)
	return ok
}

// Encode serializes the document with sorted keys.
func (d *Document) Encode() ([]byte, error) {
	out, err := json.MarshalIndent(d.entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding: marshal document: %w", err)
	}
	return append(out, '\n'), nil
}
