// Package firestore adapts Cloud Firestore to the store interface used by
// the trigger engine and batch jobs.
package firestore

import (
	"context"
	"fmt"
	"strings"

	fs "cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/SimonWorku1/PrayerBuddy/internal/store"
)

type Store struct {
	client *fs.Client
}

func New(ctx context.Context, projectID string) (*Store, error) {
	client, err := fs.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, path string) (store.Document, error) {
	snap, err := s.client.Doc(path).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, err
	}
	return store.Document{Path: relPath(snap.Ref), Data: snap.Data()}, nil
}

func (s *Store) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	q := s.client.Collection(collection).Query
	for _, f := range filters {
		q = applyFilter(q, f)
	}
	return getAll(ctx, q)
}

func (s *Store) QueryGroup(ctx context.Context, collectionID string, filters ...store.Filter) ([]store.Document, error) {
	q := s.client.CollectionGroup(collectionID).Query
	for _, f := range filters {
		q = applyFilter(q, f)
	}
	return getAll(ctx, q)
}

func (s *Store) List(ctx context.Context, collection string, limit int) ([]store.Document, error) {
	q := s.client.Collection(collection).Query
	if limit > 0 {
		q = q.Limit(limit)
	}
	return getAll(ctx, q)
}

func (s *Store) Batch() store.WriteBatch {
	return &batch{s: s, wb: s.client.Batch()}
}

type batch struct {
	s   *Store
	wb  *fs.WriteBatch
	ops int
}

func (b *batch) Set(path string, data map[string]any, merge bool) {
	b.ops++
	if merge {
		b.wb.Set(b.s.client.Doc(path), resolve(data), fs.MergeAll)
		return
	}
	b.wb.Set(b.s.client.Doc(path), resolve(data))
}

func (b *batch) Update(path string, data map[string]any) {
	b.ops++
	updates := make([]fs.Update, 0, len(data))
	for k, v := range resolve(data) {
		updates = append(updates, fs.Update{Path: k, Value: v})
	}
	b.wb.Update(b.s.client.Doc(path), updates)
}

func (b *batch) Delete(path string) {
	b.ops++
	b.wb.Delete(b.s.client.Doc(path))
}

func (b *batch) Len() int {
	return b.ops
}

func (b *batch) Commit(ctx context.Context) error {
	if b.ops > store.MaxBatchOps {
		return store.ErrBatchTooLarge
	}
	_, err := b.wb.Commit(ctx)
	return err
}

func applyFilter(q fs.Query, f store.Filter) fs.Query {
	switch f.Op {
	case store.OpEqual:
		return q.Where(f.Field, "==", f.Value)
	case store.OpArrayContains:
		return q.Where(f.Field, "array-contains", f.Value)
	case store.OpMissing:
		// Firestore has no "field absent" operator; matching explicit
		// nulls covers the backfill trigger's contract.
		return q.Where(f.Field, "==", nil)
	case store.OpDocumentID:
		return q.Where(fs.DocumentID, "==", f.Value)
	}
	return q
}

func getAll(ctx context.Context, q fs.Query) ([]store.Document, error) {
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	docs := make([]store.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, store.Document{Path: relPath(snap.Ref), Data: snap.Data()})
	}
	return docs, nil
}

// relPath strips the resource prefix, leaving the collection-relative
// document path the rest of the engine works with.
func relPath(ref *fs.DocumentRef) string {
	const marker = "/documents/"
	if i := strings.Index(ref.Path, marker); i >= 0 {
		return ref.Path[i+len(marker):]
	}
	return ref.Path
}

func resolve(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if v == store.ServerTimestamp {
			out[k] = fs.ServerTimestamp
			continue
		}
		out[k] = v
	}
	return out
}
