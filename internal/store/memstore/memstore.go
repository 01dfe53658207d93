// Package memstore is an in-memory document store backend. It backs local
// runs and tests, and emits trigger changes synchronously after each
// commit so the trigger engine can be exercised without a live backend.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/SimonWorku1/PrayerBuddy/internal/store"
)

type Store struct {
	mu      sync.RWMutex
	docs    map[string]map[string]any
	watcher store.Watcher
}

func New() *Store {
	return &Store{docs: make(map[string]map[string]any)}
}

// Watch registers the single trigger watcher. Changes are delivered
// synchronously in commit order; redelivery is simulated by tests, not
// by the store.
func (s *Store) Watch(w store.Watcher) {
	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
}

func (s *Store) Get(ctx context.Context, path string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[path]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return store.Document{Path: path, Data: clone(data)}, nil
}

func (s *Store) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Document
	for _, path := range s.sortedPaths() {
		if store.Collection(path) != collection {
			continue
		}
		if matchesAll(path, s.docs[path], filters) {
			out = append(out, store.Document{Path: path, Data: clone(s.docs[path])})
		}
	}
	return out, nil
}

func (s *Store) QueryGroup(ctx context.Context, collectionID string, filters ...store.Filter) ([]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Document
	for _, path := range s.sortedPaths() {
		if store.CollectionID(store.Collection(path)) != collectionID {
			continue
		}
		if matchesAll(path, s.docs[path], filters) {
			out = append(out, store.Document{Path: path, Data: clone(s.docs[path])})
		}
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, collection string, limit int) ([]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Document
	for _, path := range s.sortedPaths() {
		if store.Collection(path) != collection {
			continue
		}
		out = append(out, store.Document{Path: path, Data: clone(s.docs[path])})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Len reports the total number of documents; test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *Store) Batch() store.WriteBatch {
	return &batch{s: s}
}

type opKind int

const (
	opSet opKind = iota
	opSetMerge
	opUpdate
	opDelete
)

type op struct {
	kind opKind
	path string
	data map[string]any
}

type batch struct {
	s   *Store
	ops []op
}

func (b *batch) Set(path string, data map[string]any, merge bool) {
	k := opSet
	if merge {
		k = opSetMerge
	}
	b.ops = append(b.ops, op{kind: k, path: path, data: clone(data)})
}

func (b *batch) Update(path string, data map[string]any) {
	b.ops = append(b.ops, op{kind: opUpdate, path: path, data: clone(data)})
}

func (b *batch) Delete(path string) {
	b.ops = append(b.ops, op{kind: opDelete, path: path})
}

func (b *batch) Len() int {
	return len(b.ops)
}

// Commit applies all operations atomically: every operation is validated
// before any state changes, mirroring the backend's all-or-nothing
// batch semantics.
func (b *batch) Commit(ctx context.Context) error {
	if len(b.ops) > store.MaxBatchOps {
		return store.ErrBatchTooLarge
	}

	now := time.Now()

	b.s.mu.Lock()

	// validation pass: updates require the target to exist, accounting
	// for earlier operations in the same batch
	exists := func(path string) bool {
		_, ok := b.s.docs[path]
		return ok
	}
	created := map[string]bool{}
	deleted := map[string]bool{}
	for _, o := range b.ops {
		switch o.kind {
		case opSet, opSetMerge:
			created[o.path] = true
			delete(deleted, o.path)
		case opDelete:
			deleted[o.path] = true
			delete(created, o.path)
		case opUpdate:
			if deleted[o.path] || (!created[o.path] && !exists(o.path)) {
				b.s.mu.Unlock()
				return fmt.Errorf("update %s: %w", o.path, store.ErrNotFound)
			}
		}
	}

	var changes []store.Change
	for _, o := range b.ops {
		before, had := b.s.docs[o.path]
		switch o.kind {
		case opSet:
			b.s.docs[o.path] = resolve(o.data, now)
		case opSetMerge, opUpdate:
			next := clone(before)
			if next == nil {
				next = make(map[string]any)
			}
			for k, v := range resolve(o.data, now) {
				next[k] = v
			}
			b.s.docs[o.path] = next
		case opDelete:
			if !had {
				continue // benign
			}
			delete(b.s.docs, o.path)
		}

		ch := store.Change{Path: o.path, Before: clone(before), At: now}
		switch {
		case o.kind == opDelete:
			ch.Kind = store.ChangeDeleted
		case had:
			ch.Kind = store.ChangeUpdated
			ch.After = clone(b.s.docs[o.path])
		default:
			ch.Kind = store.ChangeCreated
			ch.After = clone(b.s.docs[o.path])
		}
		changes = append(changes, ch)
	}

	w := b.s.watcher
	b.s.mu.Unlock()

	if w != nil {
		for _, ch := range changes {
			w(ch)
		}
	}
	return nil
}

func (s *Store) sortedPaths() []string {
	paths := make([]string, 0, len(s.docs))
	for p := range s.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func matchesAll(path string, data map[string]any, filters []store.Filter) bool {
	for _, f := range filters {
		if !matches(path, data, f) {
			return false
		}
	}
	return true
}

func matches(path string, data map[string]any, f store.Filter) bool {
	switch f.Op {
	case store.OpDocumentID:
		return store.Document{Path: path}.ID() == f.Value
	case store.OpMissing:
		v, ok := data[f.Field]
		return !ok || v == nil
	case store.OpEqual:
		v, ok := data[f.Field]
		return ok && reflect.DeepEqual(v, f.Value)
	case store.OpArrayContains:
		for _, e := range (store.Document{Data: data}).Strings(f.Field) {
			if e == f.Value {
				return true
			}
		}
		return false
	}
	return false
}

// resolve replaces ServerTimestamp sentinels with the commit time.
func resolve(data map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if v == store.ServerTimestamp {
			out[k] = now
			continue
		}
		out[k] = v
	}
	return out
}

func clone(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch t := v.(type) {
		case map[string]any:
			out[k] = clone(t)
		case []string:
			out[k] = append([]string(nil), t...)
		case []any:
			out[k] = append([]any(nil), t...)
		default:
			out[k] = v
		}
	}
	return out
}
