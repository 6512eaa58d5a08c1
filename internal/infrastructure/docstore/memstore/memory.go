package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Zhima-Mochi/storefront/internal/infrastructure/docstore"
)

// Table keeps documents as raw JSON so callers never share mutable state with the store.
type Table struct {
	name string
	mu   sync.RWMutex
	docs map[string][]byte
}

func New(name string) *Table {
	return &Table{name: name, docs: make(map[string][]byte)}
}

func (t *Table) Name() string { return t.name }

func (t *Table) Get(ctx context.Context, id string) (docstore.Document, error) {
	_ = ctx

	t.mu.RLock()
	defer t.mu.RUnlock()

	raw, ok := t.docs[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return docstore.Unmarshal(raw)
}

func (t *Table) Put(ctx context.Context, id string, doc docstore.Document) error {
	_ = ctx
	if id == "" {
		return docstore.ErrMissingID
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("memstore: put %s: %w", t.name, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.docs[id] = raw
	return nil
}

func (t *Table) Insert(ctx context.Context, id string, doc docstore.Document) error {
	_ = ctx
	if id == "" {
		return docstore.ErrMissingID
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("memstore: insert %s: %w", t.name, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.docs[id]; ok {
		return docstore.ErrConflict
	}
	t.docs[id] = raw
	return nil
}

func (t *Table) Update(ctx context.Context, id string, patch docstore.Document) (docstore.Document, error) {
	clean, dirty := docstore.CleanPatch(patch)
	if !dirty {
		return t.Get(ctx, id)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	raw, ok := t.docs[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	current, err := docstore.Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	merged := docstore.Merge(current, clean)
	next, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("memstore: update %s: %w", t.name, err)
	}
	t.docs[id] = next
	return docstore.Unmarshal(next)
}

func (t *Table) Scan(ctx context.Context) ([]docstore.Document, error) {
	_ = ctx

	t.mu.RLock()
	ids := make([]string, 0, len(t.docs))
	for id := range t.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	raws := make([][]byte, 0, len(ids))
	for _, id := range ids {
		raws = append(raws, t.docs[id])
	}
	t.mu.RUnlock()

	out := make([]docstore.Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := docstore.Unmarshal(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (t *Table) Increment(ctx context.Context, id, field string, delta int64, bound docstore.Bound) (docstore.Document, error) {
	_ = ctx

	t.mu.Lock()
	defer t.mu.Unlock()

	raw, ok := t.docs[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	doc, err := docstore.Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	current, err := docstore.IntField(doc, field)
	if err != nil {
		return nil, err
	}
	next, err := bound.Apply(current, delta)
	if err != nil {
		return nil, err
	}
	doc[field] = next
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("memstore: increment %s: %w", t.name, err)
	}
	t.docs[id] = out
	return docstore.Unmarshal(out)
}
