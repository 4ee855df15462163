package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func exercise(t *testing.T, s Store) {
	t.Helper()
	if _, ok := s.Get("spotify:adele"); ok {
		t.Fatal("unexpected hit on empty store")
	}
	if err := s.Put("spotify:adele", []byte(`[{"name":"soul"}]`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := s.Get("spotify:adele")
	if !ok || string(got) != `[{"name":"soul"}]` {
		t.Errorf("Get = %q, %v", got, ok)
	}
	if s.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", s.Pending())
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending after Flush = %d, want 0", s.Pending())
	}
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestBadger_InMemory(t *testing.T) {
	s, err := OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	defer s.Close() //nolint:errcheck
	exercise(t, s)
}

func TestBadger_PersistsAcrossOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")
	s, err := OpenBadger(dir)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	exercise(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	again, err := OpenBadger(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close() //nolint:errcheck
	if _, ok := again.Get("spotify:adele"); !ok {
		t.Error("entry lost after reopen")
	}
}

func TestFileStore_FlushOnlyWhenAsked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_cache.json")
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	exercise(t, s)

	if err := s.Put("lastfm:adele", []byte(`[]`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	reloaded, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if reloaded.Len() != 1 {
		t.Errorf("unflushed entry reached disk: Len = %d, want 1", reloaded.Len())
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	reloaded, err = OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if reloaded.Len() != 2 {
		t.Errorf("Len after Close = %d, want 2", reloaded.Len())
	}
}

func TestFileStore_RejectsInvalidJSON(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "c.json"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := s.Put("k", []byte("{not json")); err == nil {
		t.Error("expected error for invalid JSON value")
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFile(path); err == nil {
		t.Error("expected error for corrupt cache file")
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("redis", ""); err == nil {
		t.Error("expected error for unknown backend")
	}
}
