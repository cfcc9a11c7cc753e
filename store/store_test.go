package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "images.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := openTemp(t)
	data := []byte("image bytes")

	h, err := s.Put(data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if h != Hash(data) {
		t.Errorf("Put returned %s, want %s", h, Hash(data))
	}
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64", len(h))
	}

	got, err := s.Get(h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Get = %q, want %q", got, data)
	}

	again, err := s.Put(data)
	if err != nil || again != h {
		t.Errorf("second Put = %s, %v", again, err)
	}
	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("List returned %d entries, want 1", len(entries))
	}
}

func TestGetMissing(t *testing.T) {
	s := openTemp(t)
	if _, err := s.Get(Hash([]byte("nothing"))); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	ok, err := s.Has(Hash([]byte("nothing")))
	if err != nil || ok {
		t.Errorf("Has = %v, %v", ok, err)
	}
}

func TestResolve(t *testing.T) {
	s := openTemp(t)
	h, err := s.Put([]byte("first"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Tag("main", h); err != nil {
		t.Fatalf("Tag: %v", err)
	}

	tests := []struct {
		ref     string
		want    string
		wantErr error
	}{
		{"main", h, nil},
		{h, h, nil},
		{h[:8], h, nil},
		{h[:3], "", ErrNotFound},
		{"zzzz", "", ErrNotFound},
		{"other", "", ErrNotFound},
	}
	for _, tt := range tests {
		got, err := s.Resolve(tt.ref)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("Resolve(%q) err = %v, want %v", tt.ref, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}

	data, gotHash, err := s.Load("main")
	if err != nil || gotHash != h || string(data) != "first" {
		t.Errorf("Load = %q, %s, %v", data, gotHash, err)
	}
}

func TestResolveAmbiguous(t *testing.T) {
	s := openTemp(t)
	// Store images until two share a four-character prefix.
	seen := make(map[string]string)
	var prefix string
	for i := 0; prefix == ""; i++ {
		h, err := s.Put([]byte{byte(i), byte(i >> 8), byte(i >> 16)})
		if err != nil {
			t.Fatal(err)
		}
		if _, dup := seen[h[:4]]; dup {
			prefix = h[:4]
		}
		seen[h[:4]] = h
	}
	if _, err := s.Resolve(prefix); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("Resolve(%q) err = %v, want ErrAmbiguous", prefix, err)
	}
}

func TestTagAndDelete(t *testing.T) {
	s := openTemp(t)
	h, err := s.Put([]byte("tagged"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Tag("b", h); err != nil {
		t.Fatal(err)
	}
	if err := s.Tag("a", h); err != nil {
		t.Fatal(err)
	}
	if err := s.Tag("dangling", Hash([]byte("missing"))); !errors.Is(err, ErrNotFound) {
		t.Errorf("Tag on missing image err = %v", err)
	}

	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || len(entries[0].Tags) != 2 || entries[0].Tags[0] != "a" || entries[0].Tags[1] != "b" {
		t.Fatalf("List = %+v", entries)
	}
	if entries[0].Size != len("tagged") {
		t.Errorf("Size = %d", entries[0].Size)
	}

	if err := s.Delete(h); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Resolve("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("tag survived delete: %v", err)
	}
	if err := s.Delete(h); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v", err)
	}
}

func TestReopenKeepsImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	h, err := s.Put([]byte("persisted"))
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if ok, err := s.Has(h); err != nil || !ok {
		t.Errorf("Has after reopen = %v, %v", ok, err)
	}
	if s.Path() != path {
		t.Errorf("Path = %s", s.Path())
	}
}
