// Package docstore provides key-partitioned JSON document tables and the
// typed repositories built on them.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("docstore: document not found")
	ErrBelowFloor = errors.New("docstore: counter would drop below zero")
	ErrConflict   = errors.New("docstore: conflicting write")
	ErrMissingID  = errors.New("docstore: document id is required")
)

// Document is a schemaless record addressed by its "id" field.
type Document map[string]any

// Bound restricts the result of Increment.
type Bound int

const (
	Unbounded Bound = iota
	ClampAtZero
	RejectBelowZero
)

func (b Bound) String() string {
	switch b {
	case ClampAtZero:
		return "clamp"
	case RejectBelowZero:
		return "reject"
	default:
		return "allow"
	}
}

// Apply returns current+delta under the bound. The bound only restricts
// reductions: a non-negative delta is always added in full, and a clamped
// reduction never raises a counter that is already negative.
func (b Bound) Apply(current, delta int64) (int64, error) {
	next := current + delta
	if delta >= 0 || next >= 0 {
		return next, nil
	}
	switch b {
	case ClampAtZero:
		if current < 0 {
			return current, nil
		}
		return 0, nil
	case RejectBelowZero:
		return current, ErrBelowFloor
	default:
		return next, nil
	}
}

// Table is one logical table of documents.
type Table interface {
	Name() string
	Get(ctx context.Context, id string) (Document, error)
	Put(ctx context.Context, id string, doc Document) error
	// Insert stores doc only when id is absent and returns ErrConflict otherwise.
	Insert(ctx context.Context, id string, doc Document) error
	// Update merges patch into the stored document and returns the result.
	// The id key of patch is ignored. An empty patch returns the current document without a write.
	Update(ctx context.Context, id string, patch Document) (Document, error)
	Scan(ctx context.Context) ([]Document, error)
	// Increment atomically adds delta to the integer field and returns the updated document.
	Increment(ctx context.Context, id, field string, delta int64, bound Bound) (Document, error)
}

// Encode converts v into a Document through its JSON representation.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	return Unmarshal(raw)
}

// Decode fills v from doc through its JSON representation.
func Decode(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	return nil
}

// Unmarshal parses raw JSON into a Document keeping numbers exact.
func Unmarshal(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("docstore: unmarshal: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Merge returns a copy of base with patch applied on top. The id key of patch is skipped.
func Merge(base, patch Document) Document {
	out := make(Document, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}

// CleanPatch drops the id key and reports whether anything is left to write.
func CleanPatch(patch Document) (Document, bool) {
	clean := make(Document, len(patch))
	for k, v := range patch {
		if k == "id" {
			continue
		}
		clean[k] = v
	}
	return clean, len(clean) > 0
}

// IntField reads an integer field, treating a missing field as zero.
func IntField(doc Document, field string) (int64, error) {
	v, ok := doc[field]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("docstore: field %q is not an integer", field)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("docstore: field %q is not numeric", field)
	}
}
