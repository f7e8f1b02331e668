// Package auth logs in to the betting site and keeps the resulting session
// reusable across runs through the session store.
package auth

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"toto-gobet/internal/page"
	"toto-gobet/internal/session"
)

const maxLoginAttempts = 3

// Credentials is the immutable login input for one run.
type Credentials struct {
	Username string
	Password string
	// GameURL is the betting page; the site root and login endpoint are
	// derived from it.
	GameURL string
}

// FailedError means the site rejected the credentials or every login
// attempt failed its liveness check. Fatal for the run.
type FailedError struct {
	Reason string
}

func (e *FailedError) Error() string {
	return "login failed: " + e.Reason
}

// Authenticator performs the login flow against the site and caches the
// session through a store.
type Authenticator struct {
	store *session.Store
}

func New(store *session.Store) *Authenticator {
	return &Authenticator{store: store}
}

// siteRoot derives scheme://host/ from the game URL.
func siteRoot(gameURL string) (string, error) {
	u, err := url.Parse(gameURL)
	if err != nil {
		return "", fmt.Errorf("game url %q: %w", gameURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("game url %q: missing scheme or host", gameURL)
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String(), nil
}

// LoginSession returns an authenticated session: the stored one when it
// still passes the liveness check, otherwise a fresh login. Up to 3
// attempts; each failed liveness check discards the stored state first so
// a stale session is never reused.
func (a *Authenticator) LoginSession(ctx context.Context, creds Credentials) (*session.Session, error) {
	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		s, err := a.login(ctx, creds)
		if err != nil {
			return nil, err
		}

		ok, err := a.CheckLogin(ctx, s, creds.GameURL)
		if err != nil {
			return nil, err
		}
		if ok {
			return s, nil
		}

		if err := a.store.Discard(); err != nil {
			log.Printf("[warn] discard session state: %v", err)
		}
		log.Printf("[warn] session failed liveness check; retrying login (attempt %d/%d)", attempt, maxLoginAttempts)
	}
	return nil, &FailedError{Reason: fmt.Sprintf("liveness check failed after %d attempts", maxLoginAttempts)}
}

// login returns the stored session when one exists, else runs the fresh
// login flow and persists the result.
func (a *Authenticator) login(ctx context.Context, creds Credentials) (*session.Session, error) {
	if s, ok, err := a.store.Load(); err != nil {
		return nil, err
	} else if ok {
		log.Printf("[cfg] reusing stored session from %s", a.store.Path())
		return s, nil
	}

	root, err := siteRoot(creds.GameURL)
	if err != nil {
		return nil, err
	}

	s, err := session.New(root)
	if err != nil {
		return nil, err
	}

	// Baseline request: pick up the site's initial cookies before posting
	// credentials, the way a browser would land on the front page first.
	resp, err := s.Get(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("site root: %w", err)
	}
	session.Drain(resp)

	loginURL := root + "index.php?lang=1&pid=loginonline"
	form := url.Values{
		"username":             {creds.Username},
		"password":             {creds.Password},
		"g-recaptcha-response": {""},
	}
	resp, err = s.PostForm(ctx, loginURL, form)
	if err != nil {
		return nil, fmt.Errorf("login post: %w", err)
	}
	defer resp.Body.Close()

	doc, err := page.Parse(resp.Body, resp.Request.URL)
	if err != nil {
		return nil, err
	}
	if banner, ok := doc.ErrorText(); ok {
		return nil, &FailedError{Reason: banner}
	}

	if err := a.store.Save(s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	log.Printf("Logged in as %s", creds.Username)
	return s, nil
}

// CheckLogin probes the game URL and reports whether the session is still
// authenticated: the login-form marker on the response means it is not.
func (a *Authenticator) CheckLogin(ctx context.Context, s *session.Session, gameURL string) (bool, error) {
	resp, err := s.Get(ctx, gameURL)
	if err != nil {
		return false, fmt.Errorf("liveness check: %w", err)
	}
	defer resp.Body.Close()

	doc, err := page.Parse(resp.Body, resp.Request.URL)
	if err != nil {
		return false, err
	}
	return !doc.HasLoginForm(), nil
}
