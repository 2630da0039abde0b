// Package encoding interprets stored bytes either as opaque raw content or
// as a flat string-to-string mapping, and defines append and insert for each.
package encoding

import (
	"fmt"
	"strings"

	"github.com/starford/arkvault/internal/apperr"
)

// Format selects how an operation interprets stored bytes.
type Format int

const (
	Raw Format = iota
	Structured
)

func (f Format) String() string {
	switch f {
	case Raw:
		return "raw"
	case Structured:
		return "json"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat maps a user-facing format name to a Format. An empty name
// selects Raw.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "raw":
		return Raw, nil
	case "json", "structured":
		return Structured, nil
	default:
		return Raw, &apperr.ParseError{Token: name, Reason: "unknown format"}
	}
}

// ParsePairs parses comma-separated key=value pairs. Keys and values are
// trimmed. Blank input yields an empty mapping.
func ParsePairs(input string) (map[string]string, error) {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out, nil
	}
	for _, token := range strings.Split(input, ",") {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			return nil, &apperr.ParseError{Token: strings.TrimSpace(token), Reason: "missing '='"}
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, &apperr.ParseError{Token: strings.TrimSpace(token), Reason: "empty key"}
		}
		if _, dup := out[key]; dup {
			return nil, &apperr.ParseError{Token: strings.TrimSpace(token), Reason: "duplicate key"}
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}
