package encoding

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// Append combines current content with input. Raw concatenates bytes;
// Structured merges the parsed pairs over the existing mapping.
func Append(f Format, current, input []byte) ([]byte, error) {
	switch f {
	case Raw:
		out := make([]byte, 0, len(current)+len(input))
		out = append(out, current...)
		return append(out, input...), nil
	case Structured:
		pairs, err := ParsePairs(string(input))
		if err != nil {
			return nil, err
		}
		fields, _ := decodeFields(current)
		maps.Copy(fields, pairs)
		return encodeFields(fields)
	default:
		return nil, fmt.Errorf("encoding: unsupported format %s", f)
	}
}

// Insert replaces current content with input.
func Insert(f Format, _ []byte, input []byte) ([]byte, error) {
	switch f {
	case Raw:
		return slices.Clone(input), nil
	case Structured:
		pairs, err := ParsePairs(string(input))
		if err != nil {
			return nil, err
		}
		return encodeFields(pairs)
	default:
		return nil, fmt.Errorf("encoding: unsupported format %s", f)
	}
}

// Value is a decoded stored value. Raw holds the stored bytes whenever they
// are known; Fields is the structured view, set when Format is Structured.
type Value struct {
	Format Format
	Raw    []byte
	Fields map[string]string
}

// Decode interprets stored bytes. Content that is a JSON object of strings
// also gets a Structured view; the bytes themselves are always kept in Raw.
func Decode(data []byte) Value {
	if data == nil {
		data = []byte{}
	}
	if fields, ok := decodeFields(data); ok {
		return Value{Format: Structured, Raw: data, Fields: fields}
	}
	return Value{Format: Raw, Raw: data}
}

// String renders the full value, preferring the stored bytes.
func (v Value) String() string {
	if v.Raw == nil && v.Format == Structured {
		out, _ := encodeFields(v.Fields)
		return string(out)
	}
	return string(v.Raw)
}

// Summary renders the value for a one-line listing, truncating long raw
// content to limit runes.
func (v Value) Summary(limit int) string {
	if v.Raw == nil && v.Format == Structured {
		keys := slices.Sorted(maps.Keys(v.Fields))
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+v.Fields[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	s := strings.ReplaceAll(string(v.Raw), "\n", `\n`)
	if limit > 0 && utf8.RuneCountInString(s) > limit {
		r := []rune(s)
		return string(r[:limit]) + "... (" + humanize.Bytes(uint64(len(v.Raw))) + ")"
	}
	return s
}

// decodeFields reports whether data is a JSON object of strings. When it is
// not, an empty mapping is returned so callers can start afresh.
func decodeFields(data []byte) (map[string]string, bool) {
	fields := make(map[string]string)
	if len(data) == 0 {
		return fields, false
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return fields, false
	}
	for k, v := range obj {
		s, ok := v.(string)
		if !ok {
			return make(map[string]string), false
		}
		fields[k] = s
	}
	return fields, true
}

func encodeFields(fields map[string]string) ([]byte, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding: marshal: %w", err)
	}
	return out, nil
}
