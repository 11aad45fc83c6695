package store

import (
	"bytes"
	"encoding/json"
)

func encodeJSON(v any, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSONAtomic writes v as indented JSON via WriteFileAtomic so readers
// never observe a partially written verdict.json or run.json.
func WriteJSONAtomic(path string, v any) error {
	b, err := encodeJSON(v, true)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, b)
}

// CanonicalJSON encodes v as compact single-line JSON with HTML escaping
// disabled. The archive stores verdict blobs in this form.
func CanonicalJSON(v any) ([]byte, error) {
	b, err := encodeJSON(v, false)
	if err != nil {
		return nil, err
	}
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	return b, nil
}
