package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/Zhima-Mochi/storefront/internal/infrastructure/docstore"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Table maps a logical table onto a PostgreSQL table of (id text, doc jsonb) rows.
type Table struct {
	db    *sqlx.DB
	name  string
	ident string
}

func New(db *sqlx.DB, name string) (*Table, error) {
	if !tableNamePattern.MatchString(name) {
		return nil, fmt.Errorf("pgstore: invalid table name %q", name)
	}
	return &Table{db: db, name: name, ident: pq.QuoteIdentifier(name)}, nil
}

func (t *Table) Name() string { return t.name }

// Ensure creates the backing table when it does not exist yet.
func (t *Table) Ensure(ctx context.Context) error {
	q := `CREATE TABLE IF NOT EXISTS ` + t.ident + ` (id TEXT PRIMARY KEY, doc JSONB NOT NULL)`
	if _, err := t.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("pgstore: ensure %s: %w", t.name, err)
	}
	return nil
}

func (t *Table) Get(ctx context.Context, id string) (docstore.Document, error) {
	var raw types.JSONText
	err := t.db.GetContext(ctx, &raw, `SELECT doc FROM `+t.ident+` WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: get %s/%s: %w", t.name, id, err)
	}
	return docstore.Unmarshal(raw)
}

func (t *Table) Put(ctx context.Context, id string, doc docstore.Document) error {
	if id == "" {
		return docstore.ErrMissingID
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("pgstore: put %s/%s: %w", t.name, id, err)
	}
	q := `INSERT INTO ` + t.ident + ` (id, doc) VALUES ($1, $2::jsonb)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`
	if _, err := t.db.ExecContext(ctx, q, id, string(raw)); err != nil {
		return fmt.Errorf("pgstore: put %s/%s: %w", t.name, id, err)
	}
	return nil
}

func (t *Table) Insert(ctx context.Context, id string, doc docstore.Document) error {
	if id == "" {
		return docstore.ErrMissingID
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("pgstore: insert %s/%s: %w", t.name, id, err)
	}
	q := `INSERT INTO ` + t.ident + ` (id, doc) VALUES ($1, $2::jsonb) ON CONFLICT (id) DO NOTHING`
	res, err := t.db.ExecContext(ctx, q, id, string(raw))
	if err != nil {
		return fmt.Errorf("pgstore: insert %s/%s: %w", t.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgstore: insert %s/%s: %w", t.name, id, err)
	}
	if n == 0 {
		return docstore.ErrConflict
	}
	return nil
}

func (t *Table) Update(ctx context.Context, id string, patch docstore.Document) (docstore.Document, error) {
	clean, dirty := docstore.CleanPatch(patch)
	if !dirty {
		return t.Get(ctx, id)
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("pgstore: update %s/%s: %w", t.name, id, err)
	}

	var out types.JSONText
	q := `UPDATE ` + t.ident + ` SET doc = doc || $2::jsonb WHERE id = $1 RETURNING doc`
	err = t.db.GetContext(ctx, &out, q, id, string(raw))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: update %s/%s: %w", t.name, id, err)
	}
	return docstore.Unmarshal(out)
}

func (t *Table) Scan(ctx context.Context) ([]docstore.Document, error) {
	var rows []types.JSONText
	if err := t.db.SelectContext(ctx, &rows, `SELECT doc FROM `+t.ident+` ORDER BY id`); err != nil {
		return nil, fmt.Errorf("pgstore: scan %s: %w", t.name, err)
	}
	out := make([]docstore.Document, 0, len(rows))
	for _, raw := range rows {
		doc, err := docstore.Unmarshal(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// Increment performs the read-add-write as a single UPDATE statement.
func (t *Table) Increment(ctx context.Context, id, field string, delta int64, bound docstore.Bound) (docstore.Document, error) {
	q := incrementQuery(t.ident, bound, delta)

	var out types.JSONText
	err := t.db.GetContext(ctx, &out, q, id, field, delta)
	if errors.Is(err, sql.ErrNoRows) {
		if bound != docstore.RejectBelowZero || delta >= 0 {
			return nil, docstore.ErrNotFound
		}
		var exists bool
		if err := t.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM `+t.ident+` WHERE id = $1)`, id); err != nil {
			return nil, fmt.Errorf("pgstore: increment %s/%s: %w", t.name, id, err)
		}
		if exists {
			return nil, docstore.ErrBelowFloor
		}
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: increment %s/%s: %w", t.name, id, err)
	}
	return docstore.Unmarshal(out)
}

// incrementQuery guards only reductions; additions are applied as is.
func incrementQuery(ident string, bound docstore.Bound, delta int64) string {
	current := `COALESCE((doc->>$2)::bigint, 0)`
	sum := current + ` + $3::bigint`
	value := sum
	where := `id = $1`
	if delta >= 0 {
		bound = docstore.Unbounded
	}
	switch bound {
	case docstore.ClampAtZero:
		value = `GREATEST(LEAST(` + current + `, 0), ` + sum + `)`
	case docstore.RejectBelowZero:
		where += ` AND ` + sum + ` >= 0`
	}
	return `UPDATE ` + ident + ` SET doc = jsonb_set(doc, ARRAY[$2::text], to_jsonb(` + value + `)) WHERE ` + where + ` RETURNING doc`
}
