// Package session owns the authenticated HTTP client: a cookie-jar backed
// http.Client with browser-like default headers, plus on-disk persistence
// so a still-valid login survives process restarts.
package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// defaultHeaders mimic a real browser; the site blocks obviously scripted
// clients.
var defaultHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
	"Accept-Language":           "en-US,en;q=0.9,ta;q=0.8",
	"Cache-Control":             "max-age=0",
	"Connection":                "keep-alive",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Upgrade-Insecure-Requests": "1",
	"User-Agent":                "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"sec-ch-ua":                 `"Chromium";v="130", "Google Chrome";v="130", "Not?A_Brand";v="99"`,
	"sec-ch-ua-mobile":          "?0",
	"sec-ch-ua-platform":        `"Linux"`,
}

// Session is an authenticated HTTP context against one site.
type Session struct {
	base    *url.URL
	jar     *cookiejar.Jar
	client  *http.Client
	headers map[string]string
}

// New creates a fresh session rooted at baseURL with an empty cookie jar.
func New(baseURL string) (*Session, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("session base url %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("session base url must be http(s), got %q", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Session{
		base: base,
		jar:  jar,
		client: &http.Client{
			Jar:     jar,
			Timeout: 60 * time.Second,
		},
		headers: defaultHeaders,
	}, nil
}

// Base returns the session's root URL.
func (s *Session) Base() *url.URL {
	return s.base
}

func (s *Session) do(req *http.Request) (*http.Response, error) {
	for k, v := range s.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: status %d", req.Method, req.URL, resp.StatusCode)
	}
	return resp, nil
}

// Get issues a GET with the session's cookies and default headers. The
// caller owns the response body. Non-2xx/3xx statuses are errors.
func (s *Session) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return s.do(req)
}

// PostForm issues an application/x-www-form-urlencoded POST.
func (s *Session) PostForm(ctx context.Context, rawURL string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

// Drain fully reads and closes a response body. The connection cannot be
// reused for keep-alive unless the body is consumed.
func Drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
