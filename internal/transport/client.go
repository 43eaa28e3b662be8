// Package transport issues authenticated requests and opens streams
// against a fixed backend origin.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatapp/chat-cli/internal/session"
)

// Name of the anti-forgery cookie the backend issues; its value is
// echoed back as the X-CSRFToken header on every plain request.
const csrfCookieName = "csrftoken"

// ErrAuthExpired reports a 401/403 response. The session has already
// been cleared by the time callers see this error.
var ErrAuthExpired = errors.New("authentication expired")

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("http %d", e.Status)
}

// Client issues authenticated JSON requests against the API origin.
// Its cookie jar is shared with the stream dialer so websocket dials
// ride on the same session cookies; streams cannot carry custom headers.
type Client struct {
	base     *url.URL
	http     *http.Client
	sessions *session.Store
	log      *zerolog.Logger
}

// NewClient builds a transport client for the given API origin.
func NewClient(apiBaseURL string, sessions *session.Store, timeout time.Duration, logger *zerolog.Logger) (*Client, error) {
	base, err := url.Parse(apiBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	return &Client{
		base:     base,
		http:     &http.Client{Jar: jar, Timeout: timeout},
		sessions: sessions,
		log:      logger,
	}, nil
}

// Jar exposes the shared cookie jar for the stream dialer.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

// Do issues a JSON request and decodes the response body into out
// (out may be nil). A 401/403 clears the session and returns
// ErrAuthExpired; other non-2xx responses return *HTTPError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	rel, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("parse path %q: %w", path, err)
	}
	u := c.base.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	cred, err := c.sessions.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if cred != nil {
		req.Header.Set("Authorization", "Token "+cred.Token)
	}
	if tok := c.csrfToken(); tok != "" {
		req.Header.Set("X-CSRFToken", tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("auth expired, clearing session")
		if clearErr := c.sessions.Clear(ctx); clearErr != nil {
			c.log.Warn().Err(clearErr).Msg("failed to clear session after auth failure")
		}
		return ErrAuthExpired
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode, Detail: errorDetail(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) csrfToken() string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == csrfCookieName {
			return ck.Value
		}
	}
	return ""
}

func errorDetail(r io.Reader) string {
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return ""
	}
	if payload.Detail != "" {
		return payload.Detail
	}
	return payload.Error
}
