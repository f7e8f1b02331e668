package session

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	st := NewStore(t.TempDir())

	s, err := New("https://example.org/")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	s.jar.SetCookies(s.base, []*http.Cookie{{Name: "sid", Value: "abc123"}})

	if err := st.Save(s); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, ok, err := st.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("expected stored session")
	}
	if loaded.base.String() != "https://example.org/" {
		t.Fatalf("base mismatch: got %s", loaded.base)
	}

	cookies := loaded.jar.Cookies(loaded.base)
	if len(cookies) != 1 || cookies[0].Name != "sid" || cookies[0].Value != "abc123" {
		t.Fatalf("cookie mismatch: got %+v", cookies)
	}
}

func TestLoadAbsent(t *testing.T) {
	st := NewStore(t.TempDir())
	if _, ok, err := st.Load(); err != nil || ok {
		t.Fatalf("expected absent, got ok=%v err=%v", ok, err)
	}
}

func TestLoadMalformedIsAbsent(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	st := NewStore(dir)
	if _, ok, err := st.Load(); err != nil || ok {
		t.Fatalf("malformed state must read as absent, got ok=%v err=%v", ok, err)
	}
}

func TestLoadWrongVersionIsAbsent(t *testing.T) {
	dir := t.TempDir()
	state := `{"version": 99, "base_url": "https://example.org/", "cookies": []}`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(state), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	st := NewStore(dir)
	if _, ok, _ := st.Load(); ok {
		t.Fatalf("unknown version must read as absent")
	}
}

func TestDiscard(t *testing.T) {
	st := NewStore(t.TempDir())

	// Discarding a missing file is fine.
	if err := st.Discard(); err != nil {
		t.Fatalf("discard missing: %v", err)
	}

	s, err := New("https://example.org/")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := st.Save(s); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, ok, _ := st.Load(); ok {
		t.Fatalf("session must be gone after discard")
	}
}
