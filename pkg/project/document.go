// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Document is a decoded TOML manifest. Tables are map[string]any and arrays
// are []any, as produced by go-toml.
type Document map[string]any

// ReadDocument reads and decodes a TOML file.
func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ManifestError{Path: path, Reason: "file not found"}
		}
		return nil, &ManifestError{Path: path, Reason: "cannot read file", Err: err}
	}
	return ParseDocument(path, data)
}

// ParseDocument decodes TOML data. path is only used for error reporting.
func ParseDocument(path string, data []byte) (Document, error) {
	doc := Document{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, &ManifestError{Path: path, Reason: "malformed TOML at line " + strconv.Itoa(row) + ", column " + strconv.Itoa(col), Err: err}
		}
		return nil, &ManifestError{Path: path, Reason: "malformed TOML", Err: err}
	}
	return doc, nil
}

// Marshal encodes the document back to TOML. Keys are written sorted.
func (d Document) Marshal() ([]byte, error) {
	return toml.Marshal(map[string]any(d))
}

// Table returns the sub-table under key, or nil.
func (d Document) Table(key string) Document {
	return asTable(d[key])
}

// String returns the string value under key, or "".
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Bool returns the boolean value under key.
func (d Document) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Strings returns the string array under key. Non-string items are skipped.
func (d Document) Strings(key string) []string {
	items, _ := d[key].([]any)
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

func asTable(v any) Document {
	switch t := v.(type) {
	case map[string]any:
		return t
	case Document:
		return t
	default:
		return nil
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case Document:
		return cloneValue(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// isInherited reports whether v is a `{ workspace = true }` table.
func isInherited(v any) bool {
	t := asTable(v)
	if t == nil {
		return false
	}
	return t.Bool("workspace")
}
