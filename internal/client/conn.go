// Package client implements the auth, profile and realtime contracts over the
// server's HTTP API and websocket endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
)

const defaultTimeout = 10 * time.Second

// apiError mirrors the JSON error body written by the server.
type apiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

type Conn struct {
	baseURL     *url.URL
	httpClient  *http.Client
	dialer      *websocket.Dialer
	sessionFile string
	log         *log.Logger
	now         func() time.Time

	mu      sync.Mutex
	session *types.Session
}

// New creates a connection to the server at baseURL. When sessionFile is set
// a previously saved session is restored from it and every new session is
// written back.
func New(baseURL, sessionFile string, logger *log.Logger) (*Conn, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}

	c := &Conn{
		baseURL:     u,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		dialer:      &websocket.Dialer{HandshakeTimeout: defaultTimeout},
		sessionFile: sessionFile,
		log:         logger,
		now:         time.Now,
	}

	if err := c.loadSession(); err != nil {
		c.log.Printf("ignoring saved session: %v", err)
	}

	return c, nil
}

func (c *Conn) Auth() store.AuthProvider {
	return &Auth{conn: c}
}

func (c *Conn) Profiles() store.ProfileStore {
	return &Profiles{conn: c}
}

func (c *Conn) Realtime() store.RealtimeStore {
	return &Realtime{conn: c}
}

func (c *Conn) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Conn) wsEndpoint() string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = c.baseURL.Path + "/ws"
	return u.String()
}

func (c *Conn) authHeader() http.Header {
	h := http.Header{}
	if s, ok := c.currentSession(); ok {
		h.Set("Authorization", "Bearer "+s.Token)
	}
	return h
}

// do sends a JSON request and decodes a successful response into out.
func (c *Conn) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.authHeader() {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func statusError(resp *http.Response) error {
	var body apiError
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return store.ErrUnauthorized
	case http.StatusNotFound:
		return store.ErrNotFound
	case http.StatusConflict:
		return store.ErrConflict
	}

	if body.Message == "" {
		body.Message = strings.ToLower(http.StatusText(resp.StatusCode))
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Message)
}

func (c *Conn) currentSession() (types.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || c.session.Expired(c.now()) {
		return types.Session{}, false
	}
	return *c.session, true
}

func (c *Conn) setSession(s *types.Session) error {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	if c.sessionFile == "" {
		return nil
	}

	if s == nil {
		if err := os.Remove(c.sessionFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.sessionFile), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(c.sessionFile, raw, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}

	return nil
}

func (c *Conn) loadSession() error {
	if c.sessionFile == "" {
		return nil
	}

	raw, err := os.ReadFile(c.sessionFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session file: %w", err)
	}

	var s types.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("decode session file: %w", err)
	}
	if s.Token == "" || s.UserId == "" || s.Expired(c.now()) {
		return nil
	}

	c.mu.Lock()
	c.session = &s
	c.mu.Unlock()
	return nil
}
