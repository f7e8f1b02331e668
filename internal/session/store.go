package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// FileName is the fixed session state file in the working directory.
const FileName = "session.json"

const formatVersion = 1

type persistedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type persisted struct {
	Version int               `json:"version"`
	SavedAt time.Time         `json:"saved_at"`
	BaseURL string            `json:"base_url"`
	Cookies []persistedCookie `json:"cookies"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Store persists session state to a single file. Anything unreadable or
// from a different format version is treated as absent, never as fatal:
// the worst case is a fresh login.
type Store struct {
	path string
}

// NewStore returns a store writing to dir/session.json.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName)}
}

// Path returns the state file location.
func (st *Store) Path() string {
	return st.path
}

// Save snapshots the session's cookies for its base URL and writes them
// atomically (tmp file + rename).
func (st *Store) Save(s *Session) error {
	p := persisted{
		Version: formatVersion,
		SavedAt: time.Now().UTC(),
		BaseURL: s.base.String(),
		Headers: s.headers,
	}
	for _, c := range s.jar.Cookies(s.base) {
		p.Cookies = append(p.Cookies, persistedCookie{Name: c.Name, Value: c.Value})
	}

	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, st.path)
}

// Load restores a previously saved session. The second return value is
// false when no usable state exists.
func (st *Store) Load() (*Session, bool, error) {
	b, err := os.ReadFile(st.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var p persisted
	if err := json.Unmarshal(b, &p); err != nil || p.Version != formatVersion || p.BaseURL == "" {
		// Malformed or stale format: fall through to a fresh login.
		return nil, false, nil
	}

	s, err := New(p.BaseURL)
	if err != nil {
		return nil, false, nil
	}
	if len(p.Headers) > 0 {
		s.headers = p.Headers
	}
	cookies := make([]*http.Cookie, 0, len(p.Cookies))
	for _, c := range p.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	s.jar.SetCookies(s.base, cookies)
	return s, true, nil
}

// Discard deletes the state file. Missing file is fine.
func (st *Store) Discard() error {
	err := os.Remove(st.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
