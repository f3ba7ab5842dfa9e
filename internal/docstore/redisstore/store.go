// Package redisstore keeps documents in Redis hashes, one hash per collection
// path. Field-level writes run inside WATCH/MULTI transactions so concurrent
// updates to one document never lose each other's fields.
package redisstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tandm-app/tandm/internal/docstore"
)

const maxTxRetries = 8

type envelope struct {
	CreateTime time.Time      `json:"createTime"`
	Data       map[string]any `json:"data"`
}

type Store struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

type Option func(*Store)

// WithKeyPrefix namespaces every hash key.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithClock overrides the clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: "tandm", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(collection string) string {
	return s.prefix + ":col:" + collection
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	now := s.now().UTC()
	fields, err := resolveFields(data, now)
	if err != nil {
		return "", err
	}

	id := strings.ToLower(ulid.Make().String())
	raw, err := json.Marshal(envelope{CreateTime: now, Data: fields})
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	ok, err := s.client.HSetNX(ctx, s.key(collection), id, raw).Result()
	if err != nil {
		return "", fmt.Errorf("add document: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("add document: id collision on %s/%s", collection, id)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	raw, err := s.client.HGet(ctx, s.key(collection), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	doc := &docstore.Document{ID: id, Collection: collection}
	env, err := decodeEnvelope(raw)
	if err != nil {
		// Leave Data nil; entity decoding reports the document as malformed.
		return doc, nil
	}
	doc.Data = env.Data
	doc.CreateTime = env.CreateTime
	return doc, nil
}

func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]*docstore.Document, error) {
	filters, err := normalizeFilters(q.Filters)
	if err != nil {
		return nil, err
	}

	all, err := s.client.HGetAll(ctx, s.key(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	docs := make([]*docstore.Document, 0, len(all))
	for id, raw := range all {
		doc := &docstore.Document{ID: id, Collection: collection}
		if env, err := decodeEnvelope([]byte(raw)); err == nil {
			doc.Data = env.Data
			doc.CreateTime = env.CreateTime
		}
		if !matchesAll(doc.Data, filters) {
			continue
		}
		docs = append(docs, doc)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if q.OrderBy == "" {
			return docs[i].ID < docs[j].ID
		}
		c := compareValues(fieldOf(docs[i].Data, q.OrderBy), fieldOf(docs[j].Data, q.OrderBy))
		if c == 0 {
			return docs[i].ID < docs[j].ID
		}
		if q.Direction == docstore.Desc {
			return c > 0
		}
		return c < 0
	})

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	now := s.now().UTC()
	return s.mutate(ctx, collection, id, false, func(env *envelope) error {
		return applyFields(env.Data, fields, now)
	})
}

func (s *Store) UpdateIf(ctx context.Context, collection, id, field string, want any, fields map[string]any) error {
	nw, err := normalize(want)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	return s.mutate(ctx, collection, id, false, func(env *envelope) error {
		if !containsValue([]any{env.Data[field]}, nw) {
			return fmt.Errorf("%s/%s: %s is %v: %w", collection, id, field, env.Data[field], docstore.ErrConflict)
		}
		return applyFields(env.Data, fields, now)
	})
}

func (s *Store) ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error {
	normalized := make([]any, 0, len(values))
	for _, v := range values {
		nv, err := normalize(v)
		if err != nil {
			return err
		}
		normalized = append(normalized, nv)
	}

	return s.mutate(ctx, collection, id, false, func(env *envelope) error {
		current, _ := env.Data[field].([]any)
		for _, v := range normalized {
			if !containsValue(current, v) {
				current = append(current, v)
			}
		}
		if current == nil {
			current = []any{}
		}
		env.Data[field] = current
		return nil
	})
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	now := s.now().UTC()
	return s.mutate(ctx, collection, id, true, func(env *envelope) error {
		if !merge {
			env.Data = map[string]any{}
		}
		return applyFields(env.Data, data, now)
	})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := s.client.HDel(ctx, s.key(collection), id).Err(); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Ping checks the connection for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

// mutate reads, changes and rewrites one document under WATCH, retrying when
// another writer touched the collection hash in between.
func (s *Store) mutate(ctx context.Context, collection, id string, upsert bool, fn func(*envelope) error) error {
	key := s.key(collection)

	txf := func(tx *redis.Tx) error {
		env := &envelope{}
		raw, err := tx.HGet(ctx, key, id).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if !upsert {
				return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
			}
			env.CreateTime = s.now().UTC()
		case err != nil:
			return err
		default:
			env, err = decodeEnvelope(raw)
			if err != nil {
				return fmt.Errorf("%s/%s: stored document is corrupt: %w", collection, id, err)
			}
		}
		if env.Data == nil {
			env.Data = map[string]any{}
		}

		if err := fn(env); err != nil {
			return err
		}

		out, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, out)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%s/%s: gave up after %d conflicting writes", collection, id, maxTxRetries)
}

func decodeEnvelope(raw []byte) (*envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

// normalize round-trips v through JSON so Go values compare equal to what a
// stored document holds after decoding.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported value %T: %w", docstore.ErrValidation, v, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func resolveFields(data map[string]any, now time.Time) (map[string]any, error) {
	out := make(map[string]any, len(data))
	if err := applyFields(out, data, now); err != nil {
		return nil, err
	}
	return out, nil
}

func applyFields(dst, fields map[string]any, now time.Time) error {
	for k, v := range fields {
		switch {
		case docstore.IsDeleteField(v):
			delete(dst, k)
		case docstore.IsServerTimestamp(v):
			dst[k] = now.Format(time.RFC3339Nano)
		default:
			nv, err := normalize(v)
			if err != nil {
				return err
			}
			dst[k] = nv
		}
	}
	return nil
}
