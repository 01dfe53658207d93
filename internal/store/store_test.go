package store

import "testing"

func TestDocumentAccessors(t *testing.T) {
	d := Document{
		Path: "users/u1",
		Data: map[string]any{
			"isDeactivated": true,
			"handle":        "alice",
			"memberIds":     []any{"u1", "u2", 3},
			"tags":          []string{"a", "b"},
			"count":         5,
		},
	}

	if d.ID() != "u1" {
		t.Errorf("ID = %q", d.ID())
	}
	if !d.Bool("isDeactivated") || d.Bool("absent") || d.Bool("handle") {
		t.Errorf("Bool accessor misread")
	}
	if d.Text("handle") != "alice" || d.Text("count") != "" {
		t.Errorf("Text accessor misread")
	}
	if got := d.Strings("memberIds"); len(got) != 2 || got[0] != "u1" || got[1] != "u2" {
		t.Errorf("Strings from []any = %v", got)
	}
	if got := d.Strings("tags"); len(got) != 2 {
		t.Errorf("Strings from []string = %v", got)
	}
	if d.Strings("absent") != nil {
		t.Errorf("Strings on absent field should be nil")
	}
}

func TestPathHelpers(t *testing.T) {
	cases := []struct {
		docPath, collection, collectionID string
	}{
		{"users/u1", "users", "users"},
		{"users/u1/friends/u2", "users/u1/friends", "friends"},
		{"admin/backfill_posts/trigger/t1", "admin/backfill_posts/trigger", "trigger"},
	}
	for _, c := range cases {
		if got := Collection(c.docPath); got != c.collection {
			t.Errorf("Collection(%q) = %q, want %q", c.docPath, got, c.collection)
		}
		if got := CollectionID(c.collection); got != c.collectionID {
			t.Errorf("CollectionID(%q) = %q, want %q", c.collection, got, c.collectionID)
		}
	}
	if Collection("users") != "" {
		t.Errorf("root segment has no collection")
	}
}
