package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

// Session is the request context the feed expects from a browser:
// headers plus cookies. It is obtained outside this process.
type Session struct {
	Headers map[string]string `json:"headers"`
	Cookies map[string]string `json:"cookies"`
}

// Apply sets the session headers and cookies on req.
func (s Session) Apply(req *http.Request) {
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range s.Cookies {
		req.AddCookie(&http.Cookie{Name: k, Value: v})
	}
}

// SessionProvider returns the session to use for the next request.
type SessionProvider interface {
	Session(ctx context.Context) (Session, error)
}

// StaticSession is a fixed session.
type StaticSession Session

// Session implements SessionProvider.
func (s StaticSession) Session(context.Context) (Session, error) {
	return Session(s), nil
}

// DefaultHeaders are sent when no session overrides them.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":          "*/*",
		"Accept-Language": "en-US,en;q=0.9",
		"Origin":          "https://pump.fun",
		"Referer":         "https://pump.fun/",
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
	}
}

// FileSession reads a JSON session file ({"headers": {...}, "cookies": {...}})
// and re-reads it whenever its modification time changes.
type FileSession struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	cached  Session
}

// NewFileSession creates a provider backed by path.
func NewFileSession(path string) *FileSession {
	return &FileSession{path: path}
}

// Session implements SessionProvider.
func (f *FileSession) Session(context.Context) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		return Session{}, fmt.Errorf("stat session file: %w", err)
	}
	if !f.modTime.IsZero() && info.ModTime().Equal(f.modTime) {
		return f.cached, nil
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return Session{}, fmt.Errorf("read session file: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("parse session file: %w", err)
	}

	f.cached = s
	f.modTime = info.ModTime()
	return s, nil
}
