// Package docstore abstracts the remote document store the sync layer reads
// from and writes to. Backends live in sub-packages (firestore, redisstore,
// pgstore); entity services only ever see the Store interface.
package docstore

import (
	"context"
	"time"
)

// Document is a single stored document as returned by a backend.
type Document struct {
	ID         string
	Collection string
	Data       map[string]any
	CreateTime time.Time
}

// Store is the set of remote primitives the entity services are built on.
// Collection paths may address sub-collections ("projects/p1/tasks").
type Store interface {
	// Add creates a document with a store-assigned id.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, collection string, q Query) ([]*Document, error)
	// Update sets the given top-level fields on an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// UpdateIf is Update guarded by field still holding want at write time.
	// It returns ErrConflict when the field holds anything else.
	UpdateIf(ctx context.Context, collection, id, field string, want any, fields map[string]any) error
	// ArrayUnion adds values to an array field, skipping ones already present.
	ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error
	// Set writes a document under a caller-chosen id, merging into existing
	// fields when merge is true.
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

type sentinel int

const (
	// ServerTimestamp is replaced by the store's clock when written.
	ServerTimestamp sentinel = iota + 1
	// DeleteField removes the field in Update and merging Set calls.
	DeleteField
)

func (s sentinel) String() string {
	switch s {
	case ServerTimestamp:
		return "ServerTimestamp"
	case DeleteField:
		return "DeleteField"
	}
	return "unknown"
}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	s, ok := v.(sentinel)
	return ok && s == ServerTimestamp
}

// IsDeleteField reports whether v is the DeleteField sentinel.
func IsDeleteField(v any) bool {
	s, ok := v.(sentinel)
	return ok && s == DeleteField
}

// SubPath joins a parent document with a child collection name.
func SubPath(collection, id, child string) string {
	return collection + "/" + id + "/" + child
}
