package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/storefront/internal/infrastructure/docstore"
	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 16

// Table stores every document of a logical table in one Redis hash, field = document id.
type Table struct {
	client *redis.Client
	name   string
	key    string
}

func New(client *redis.Client, prefix, name string) *Table {
	key := name
	if prefix != "" {
		key = prefix + ":" + name
	}
	return &Table{client: client, name: name, key: key}
}

func (t *Table) Name() string { return t.name }

func (t *Table) Get(ctx context.Context, id string) (docstore.Document, error) {
	raw, err := t.client.HGet(ctx, t.key, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s/%s: %w", t.name, id, err)
	}
	return docstore.Unmarshal(raw)
}

func (t *Table) Put(ctx context.Context, id string, doc docstore.Document) error {
	if id == "" {
		return docstore.ErrMissingID
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redisstore: put %s/%s: %w", t.name, id, err)
	}
	if err := t.client.HSet(ctx, t.key, id, raw).Err(); err != nil {
		return fmt.Errorf("redisstore: put %s/%s: %w", t.name, id, err)
	}
	return nil
}

func (t *Table) Insert(ctx context.Context, id string, doc docstore.Document) error {
	if id == "" {
		return docstore.ErrMissingID
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redisstore: insert %s/%s: %w", t.name, id, err)
	}
	added, err := t.client.HSetNX(ctx, t.key, id, raw).Result()
	if err != nil {
		return fmt.Errorf("redisstore: insert %s/%s: %w", t.name, id, err)
	}
	if !added {
		return docstore.ErrConflict
	}
	return nil
}

func (t *Table) Update(ctx context.Context, id string, patch docstore.Document) (docstore.Document, error) {
	clean, dirty := docstore.CleanPatch(patch)
	if !dirty {
		return t.Get(ctx, id)
	}
	return t.modify(ctx, id, func(current docstore.Document) (docstore.Document, error) {
		return docstore.Merge(current, clean), nil
	})
}

func (t *Table) Scan(ctx context.Context) ([]docstore.Document, error) {
	vals, err := t.client.HVals(ctx, t.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: scan %s: %w", t.name, err)
	}
	out := make([]docstore.Document, 0, len(vals))
	for _, v := range vals {
		doc, err := docstore.Unmarshal([]byte(v))
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// Increment runs as an optimistic WATCH/MULTI transaction on the table hash so
// concurrent increments of the same counter never lose an update.
func (t *Table) Increment(ctx context.Context, id, field string, delta int64, bound docstore.Bound) (docstore.Document, error) {
	return t.modify(ctx, id, func(current docstore.Document) (docstore.Document, error) {
		value, err := docstore.IntField(current, field)
		if err != nil {
			return nil, err
		}
		next, err := bound.Apply(value, delta)
		if err != nil {
			return nil, err
		}
		current[field] = next
		return current, nil
	})
}

func (t *Table) modify(ctx context.Context, id string, fn func(docstore.Document) (docstore.Document, error)) (docstore.Document, error) {
	var result docstore.Document
	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, t.key, id).Bytes()
		if errors.Is(err, redis.Nil) {
			return docstore.ErrNotFound
		}
		if err != nil {
			return err
		}
		current, err := docstore.Unmarshal(raw)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, t.key, id, encoded)
			return nil
		})
		if err != nil {
			return err
		}
		result, err = docstore.Unmarshal(encoded)
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := t.client.Watch(ctx, txf, t.key)
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, docstore.ErrNotFound), errors.Is(err, docstore.ErrBelowFloor):
			return nil, err
		default:
			return nil, fmt.Errorf("redisstore: modify %s/%s: %w", t.name, id, err)
		}
	}
	return nil, fmt.Errorf("redisstore: modify %s/%s: %w", t.name, id, docstore.ErrConflict)
}
