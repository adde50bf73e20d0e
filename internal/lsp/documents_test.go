package lsp

import (
	"path/filepath"
	"testing"
)

func TestDocumentStore(t *testing.T) {
	store := NewDocumentStore()
	uri := "file:///src/kernel/main.c"

	doc := store.Open(uri, "initial")
	if doc.name != "main.c" {
		t.Errorf("name = %q, want main.c", doc.name)
	}

	if _, ok := store.Update(uri, "updated"); !ok {
		t.Fatal("Update() on open document returned false")
	}
	got, ok := store.Get(uri)
	if !ok {
		t.Fatal("document not found after update")
	}
	if got.content != "updated" {
		t.Errorf("content = %q, want %q", got.content, "updated")
	}

	if _, ok := store.Close(uri); !ok {
		t.Error("Close() on open document returned false")
	}
	if _, ok := store.Get(uri); ok {
		t.Error("document still present after close")
	}
	if _, ok := store.Update(uri, "late"); ok {
		t.Error("Update() after close returned true")
	}
}

func TestSplitURI(t *testing.T) {
	tests := []struct {
		uri      string
		wantDir  string
		wantName string
	}{
		{"file:///src/kernel/main.c", filepath.FromSlash("/src/kernel"), "main.c"},
		{"file:///src/my%20dir/a.h", filepath.FromSlash("/src/my dir"), "a.h"},
		{"untitled:Untitled-1", "", "Untitled-1"},
		{"inmemory://model/3/defs.h", "", "defs.h"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			dir, name := splitURI(tt.uri)
			if dir != tt.wantDir || name != tt.wantName {
				t.Errorf("splitURI(%q) = (%q, %q), want (%q, %q)", tt.uri, dir, name, tt.wantDir, tt.wantName)
			}
		})
	}
}
