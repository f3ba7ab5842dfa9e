// Package pgstore keeps documents as JSONB rows in a single Postgres table.
package pgstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/tandm-app/tandm/internal/docstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_data_gin ON documents USING GIN (data jsonb_path_ops);
`

// stampsExpr expands a text[] of field names into a JSONB object holding the
// current transaction time for each.
const stampsExpr = `(SELECT COALESCE(jsonb_object_agg(k, to_jsonb(now())), '{}'::jsonb) FROM unnest(%s::text[]) AS k)`

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the documents table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	w, err := splitWrite(data)
	if err != nil {
		return "", err
	}

	id := strings.ToLower(ulid.Make().String())
	sql := `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb || ` + fmt.Sprintf(stampsExpr, "$4") + `)`
	if _, err := s.pool.Exec(ctx, sql, collection, id, w.fields, w.stamps); err != nil {
		return "", fmt.Errorf("add document: %w", err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, data, created_at FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)

	doc, err := scanDocument(collection, row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]*docstore.Document, error) {
	sql, args, err := buildSelect(collection, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []*docstore.Document
	for rows.Next() {
		doc, err := scanDocument(collection, rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	return docs, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	w, err := splitWrite(fields)
	if err != nil {
		return err
	}

	sql := `UPDATE documents SET data = (data || $3::jsonb || ` + fmt.Sprintf(stampsExpr, "$4") + `) - $5::text[]
		WHERE collection = $1 AND id = $2`
	tag, err := s.pool.Exec(ctx, sql, collection, id, w.fields, w.stamps, w.deletes)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return nil
}

func (s *Store) UpdateIf(ctx context.Context, collection, id, field string, want any, fields map[string]any) error {
	w, err := splitWrite(fields)
	if err != nil {
		return err
	}
	expected, err := json.Marshal(want)
	if err != nil {
		return fmt.Errorf("marshal expected value: %w", err)
	}

	sql := `UPDATE documents SET data = (data || $3::jsonb || ` + fmt.Sprintf(stampsExpr, "$4") + `) - $5::text[]
		WHERE collection = $1 AND id = $2 AND data->$6 = $7::jsonb`
	tag, err := s.pool.Exec(ctx, sql, collection, id, w.fields, w.stamps, w.deletes, field, string(expected))
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		collection, id).Scan(&exists); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if !exists {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return fmt.Errorf("%s/%s: %s changed: %w", collection, id, field, docstore.ErrConflict)
}

func (s *Store) ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}

	// The row lock taken by UPDATE serialises concurrent unions on one document.
	sql := `UPDATE documents SET data = jsonb_set(
			data,
			ARRAY[$3::text],
			COALESCE(data->$3, '[]'::jsonb) || COALESCE((
				SELECT jsonb_agg(DISTINCT e) FROM jsonb_array_elements($4::jsonb) AS e
				WHERE NOT COALESCE(data->$3, '[]'::jsonb) @> jsonb_build_array(e)
			), '[]'::jsonb),
			true)
		WHERE collection = $1 AND id = $2`
	tag, err := s.pool.Exec(ctx, sql, collection, id, field, string(raw))
	if err != nil {
		return fmt.Errorf("array union: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	w, err := splitWrite(data)
	if err != nil {
		return err
	}

	onConflict := `EXCLUDED.data`
	if merge {
		onConflict = `(documents.data || EXCLUDED.data) - $5::text[]`
	}
	sql := `INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb || ` + fmt.Sprintf(stampsExpr, "$4") + `)
		ON CONFLICT (collection, id) DO UPDATE SET data = ` + onConflict

	args := []any{collection, id, w.fields, w.stamps}
	if merge {
		args = append(args, w.deletes)
	}
	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Close is a no-op; the pool is owned by whoever opened it.
func (s *Store) Close() error { return nil }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type write struct {
	fields  string
	stamps  []string
	deletes []string
}

// splitWrite separates plain values from sentinel fields.
func splitWrite(data map[string]any) (write, error) {
	plain := make(map[string]any, len(data))
	w := write{stamps: []string{}, deletes: []string{}}
	for k, v := range data {
		switch {
		case docstore.IsServerTimestamp(v):
			w.stamps = append(w.stamps, k)
		case docstore.IsDeleteField(v):
			w.deletes = append(w.deletes, k)
		default:
			plain[k] = v
		}
	}
	raw, err := json.Marshal(plain)
	if err != nil {
		return write{}, fmt.Errorf("marshal document: %w", err)
	}
	w.fields = string(raw)
	return w, nil
}

// buildSelect renders q as a parameterised SELECT over one collection.
func buildSelect(collection string, q docstore.Query) (string, []any, error) {
	var sb strings.Builder
	args := []any{collection}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	sb.WriteString("SELECT id, data, created_at FROM documents WHERE collection = $1")
	for _, f := range q.Filters {
		field := next(f.Field)
		switch f.Op {
		case docstore.OpEqual:
			raw, err := json.Marshal(f.Value)
			if err != nil {
				return "", nil, docstore.Invalid("filter %q: %v", f.Field, err)
			}
			fmt.Fprintf(&sb, " AND data->%s = %s::jsonb", field, next(string(raw)))
		case docstore.OpArrayContains:
			raw, err := json.Marshal([]any{f.Value})
			if err != nil {
				return "", nil, docstore.Invalid("filter %q: %v", f.Field, err)
			}
			fmt.Fprintf(&sb, " AND data->%s @> %s::jsonb", field, next(string(raw)))
		case docstore.OpIn:
			values, err := inValues(f)
			if err != nil {
				return "", nil, err
			}
			fmt.Fprintf(&sb, " AND data->%s = ANY(%s::jsonb[])", field, next(values))
		default:
			return "", nil, docstore.Invalid("unsupported filter operator %q", f.Op)
		}
	}

	if q.OrderBy != "" {
		dir := "ASC"
		if q.Direction == docstore.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY data->%s %s NULLS FIRST, id", next(q.OrderBy), dir)
	} else {
		sb.WriteString(" ORDER BY id")
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %s", next(q.Limit))
	}
	return sb.String(), args, nil
}

func inValues(f docstore.Filter) ([]string, error) {
	rv := reflect.ValueOf(f.Value)
	if f.Value == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, docstore.Invalid("filter %q: %q needs a list of values", f.Field, f.Op)
	}
	if rv.Len() > docstore.MaxInValues {
		return nil, docstore.Invalid("filter %q: at most %d values allowed, got %d", f.Field, docstore.MaxInValues, rv.Len())
	}
	out := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		raw, err := json.Marshal(rv.Index(i).Interface())
		if err != nil {
			return nil, docstore.Invalid("filter %q: %v", f.Field, err)
		}
		out = append(out, string(raw))
	}
	return out, nil
}

func scanDocument(collection string, row pgx.Row) (*docstore.Document, error) {
	var (
		id      string
		raw     []byte
		created time.Time
	)
	if err := row.Scan(&id, &raw, &created); err != nil {
		return nil, err
	}

	doc := &docstore.Document{ID: id, Collection: collection, CreateTime: created}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err == nil {
		doc.Data = data
	}
	return doc, nil
}
