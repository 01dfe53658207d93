// Package store defines the document store collaborator: collections of
// schemaless documents with point reads, filtered queries and atomic
// batched writes bounded by an operation-count ceiling.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxBatchOps is the store's hard ceiling on operations per atomic commit.
const MaxBatchOps = 500

var (
	ErrNotFound      = errors.New("store: document not found")
	ErrBatchTooLarge = errors.New("store: batch exceeds max operations")
)

// ServerTimestamp is a sentinel field value resolved to the commit time
// by the backend.
var ServerTimestamp = serverTimestamp{}

type serverTimestamp struct{}

// Document is a snapshot of a stored document.
type Document struct {
	Path string
	Data map[string]any
}

// ID returns the final path segment.
func (d Document) ID() string {
	i := strings.LastIndexByte(d.Path, '/')
	if i < 0 {
		return d.Path
	}
	return d.Path[i+1:]
}

// Bool reads a boolean field; absent or mistyped fields read as false.
func (d Document) Bool(field string) bool {
	v, _ := d.Data[field].(bool)
	return v
}

// Text reads a string field; absent or mistyped fields read as "".
func (d Document) Text(field string) string {
	v, _ := d.Data[field].(string)
	return v
}

// Strings reads a string-array field.
func (d Document) Strings(field string) []string {
	switch v := d.Data[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

type FilterOp string

const (
	OpEqual         FilterOp = "=="
	OpArrayContains FilterOp = "array-contains"
	// OpMissing matches documents where the field is absent or null.
	OpMissing FilterOp = "missing"
	// OpDocumentID matches on the document id instead of a field.
	OpDocumentID FilterOp = "doc-id"
)

type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

func Where(field string, op FilterOp, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

func WhereMissing(field string) Filter {
	return Filter{Field: field, Op: OpMissing}
}

func WhereDocID(id string) Filter {
	return Filter{Op: OpDocumentID, Value: id}
}

// Store is the read/write surface shared by the trigger engine and the
// batch jobs. Implementations: memstore (tests, local runs) and the
// Firestore adapter.
type Store interface {
	// Get performs a point read; ErrNotFound when the document is absent.
	Get(ctx context.Context, path string) (Document, error)
	// Query returns all documents of a collection matching every filter.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	// QueryGroup queries across every collection with the given id,
	// regardless of nesting (friend-link lookups by peer uid).
	QueryGroup(ctx context.Context, collectionID string, filters ...Filter) ([]Document, error)
	// List returns up to limit documents of a collection (limit<=0: all).
	List(ctx context.Context, collection string, limit int) ([]Document, error)
	// Batch starts an atomic write batch.
	Batch() WriteBatch
}

// WriteBatch accumulates writes committed atomically, up to MaxBatchOps.
type WriteBatch interface {
	// Set creates or overwrites; with merge, only the given fields change.
	Set(path string, data map[string]any, merge bool)
	// Update modifies fields of an existing document; commit fails if it
	// is absent.
	Update(path string, data map[string]any)
	// Delete removes a document; deleting an absent document is benign.
	Delete(path string)
	Len() int
	Commit(ctx context.Context) error
}

// ChangeKind classifies a document mutation delivered by a trigger.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is a server-side trigger payload: one document mutation with
// before/after snapshots. Delivery is at-least-once and unordered.
type Change struct {
	Kind   ChangeKind
	Path   string
	Before map[string]any // nil on create
	After  map[string]any // nil on delete
	At     time.Time
}

// Watcher receives changes; registration is backend-specific.
type Watcher func(Change)

// Collection returns the collection path of a document path.
func Collection(docPath string) string {
	i := strings.LastIndexByte(docPath, '/')
	if i < 0 {
		return ""
	}
	return docPath[:i]
}

// CollectionID returns the final segment of a collection path.
func CollectionID(collectionPath string) string {
	i := strings.LastIndexByte(collectionPath, '/')
	if i < 0 {
		return collectionPath
	}
	return collectionPath[i+1:]
}
