// Package firestore backs docstore.Store with Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	gfs "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tandm-app/tandm/internal/docstore"
)

type Store struct {
	client *gfs.Client
}

func New(client *gfs.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, toFirestore(data, false))
	if err != nil {
		return "", translate(err, collection, "")
	}
	return ref.ID, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, translate(err, collection, id)
	}
	return fromSnapshot(collection, snap), nil
}

func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]*docstore.Document, error) {
	query := s.client.Collection(collection).Query
	for _, f := range q.Filters {
		if f.Op == docstore.OpIn {
			if n := sliceLen(f.Value); n > docstore.MaxInValues {
				return nil, docstore.Invalid("filter %q: at most %d values allowed, got %d", f.Field, docstore.MaxInValues, n)
			}
		}
		query = query.Where(f.Field, string(f.Op), f.Value)
	}
	if q.OrderBy != "" {
		dir := gfs.Asc
		if q.Direction == docstore.Desc {
			dir = gfs.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var docs []*docstore.Document
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, translate(err, collection, "")
		}
		docs = append(docs, fromSnapshot(collection, snap))
	}
	return docs, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, toUpdates(fields))
	return translate(err, collection, id)
}

// UpdateIf reads and writes inside one transaction, so Firestore retries it
// when the document changes in between.
func (s *Store) UpdateIf(ctx context.Context, collection, id, field string, want any, fields map[string]any) error {
	ref := s.client.Collection(collection).Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *gfs.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		if got := snap.Data()[field]; !reflect.DeepEqual(got, want) {
			return fmt.Errorf("%s/%s: %s is %v: %w", collection, id, field, got, docstore.ErrConflict)
		}
		return tx.Update(ref, toUpdates(fields))
	})
	return translate(err, collection, id)
}

func (s *Store) ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, []gfs.Update{
		{FieldPath: gfs.FieldPath{field}, Value: gfs.ArrayUnion(values...)},
	})
	return translate(err, collection, id)
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	ref := s.client.Collection(collection).Doc(id)
	var err error
	if merge {
		_, err = ref.Set(ctx, toFirestore(data, true), gfs.MergeAll)
	} else {
		_, err = ref.Set(ctx, toFirestore(data, false))
	}
	return translate(err, collection, id)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	return translate(err, collection, id)
}

// Ping lists at most one root collection. An empty database is still up.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Collections(ctx).Next()
	return pingResult(err)
}

func pingResult(err error) error {
	if errors.Is(err, iterator.Done) {
		return nil
	}
	return err
}

func (s *Store) Close() error {
	return s.client.Close()
}

func fromSnapshot(collection string, snap *gfs.DocumentSnapshot) *docstore.Document {
	return &docstore.Document{
		ID:         snap.Ref.ID,
		Collection: collection,
		Data:       snap.Data(),
		CreateTime: snap.CreateTime,
	}
}

func toUpdates(fields map[string]any) []gfs.Update {
	updates := make([]gfs.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, gfs.Update{FieldPath: gfs.FieldPath{k}, Value: toValue(v)})
	}
	return updates
}

// toFirestore swaps store sentinels for their Firestore equivalents. Delete
// markers are only legal in merging writes, so they are dropped otherwise.
func toFirestore(data map[string]any, keepDeletes bool) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if docstore.IsDeleteField(v) && !keepDeletes {
			continue
		}
		out[k] = toValue(v)
	}
	return out
}

func toValue(v any) any {
	switch {
	case docstore.IsServerTimestamp(v):
		return gfs.ServerTimestamp
	case docstore.IsDeleteField(v):
		return gfs.Delete
	}
	return v
}

func translate(err error, collection, id string) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return err
}

func sliceLen(v any) int {
	switch s := v.(type) {
	case []string:
		return len(s)
	case []any:
		return len(s)
	}
	return 0
}
