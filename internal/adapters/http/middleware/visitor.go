package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"ministry/internal/adapters/storage/credential"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const visitorContextKey contextKey = "visitor"

// Cookie names.
const (
	sessionCookieName = "ministry_session"
	deviceCookieName  = "ministry_device"
)

// SessionIdleTimeout is how long an untouched visitor session survives.
const SessionIdleTimeout = 24 * time.Hour

const deviceCookieMaxAge = 365 * 24 * 60 * 60

// Session is one browser session's server-side state.
// It owns the session-scoped credential storage and any per-page state
// attached through Attr.
type Session struct {
	ID        string
	DeviceID  string // long-lived device cookie; keys persistent credential storage
	CreatedAt time.Time
	Storage   *credential.MemoryStorage

	mu       sync.Mutex
	lastSeen time.Time
	attrs    map[string]any
}

// Attr returns the value stored under key, creating it with init on first use.
// PRE: init is non-nil
// POST: every caller for the same session and key gets the same value
func (s *Session) Attr(key string, init func() any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.attrs[key]; ok {
		return v
	}
	v := init()
	s.attrs[key] = v
	return v
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// SessionStore is an in-memory visitor session store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create stores a new session for deviceID and returns it.
// PRE: none
// POST: Session is stored under a fresh random token
func (ss *SessionStore) Create(deviceID string) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	now := ss.now()
	s := &Session{
		ID:        token,
		DeviceID:  deviceID,
		CreatedAt: now,
		Storage:   credential.NewMemoryStorage(),
		lastSeen:  now,
		attrs:     make(map[string]any),
	}
	ss.mu.Lock()
	ss.sessions[token] = s
	ss.mu.Unlock()
	return s, nil
}

// Get retrieves a live session by token and refreshes its idle timer.
// PRE: none
// POST: Returns false for unknown or idle-expired sessions
func (ss *SessionStore) Get(token string) (*Session, bool) {
	if token == "" {
		return nil, false
	}
	ss.mu.RLock()
	s, ok := ss.sessions[token]
	ss.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := ss.now()
	if s.idleSince(now) > SessionIdleTimeout {
		ss.Delete(token)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Delete removes a session by token.
// PRE: token is non-empty
// POST: Session with given token is removed
func (ss *SessionStore) Delete(token string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, token)
}

// PurgeExpired drops every idle-expired session and returns how many were removed.
func (ss *SessionStore) PurgeExpired() int {
	now := ss.now()
	ss.mu.Lock()
	defer ss.mu.Unlock()
	n := 0
	for token, s := range ss.sessions {
		if s.idleSince(now) > SessionIdleTimeout {
			delete(ss.sessions, token)
			n++
		}
	}
	return n
}

// Len returns the number of stored sessions.
func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// needsVisitor reports routes that keep per-visitor state: the scheduling
// flow and the student credential routes. Content pages stay stateless so
// crawlers do not fill the session store.
func needsVisitor(path string) bool {
	for _, prefix := range []string{"/schedule", "/student"} {
		if rest, ok := strings.CutPrefix(path, prefix); ok && (rest == "" || rest[0] == '/') {
			return true
		}
	}
	return path == "/clear-auth"
}

// Visitor returns middleware that attaches the visitor Session to the request context
// on stateful routes. A missing device cookie is issued with a one-year lifetime;
// a missing or expired session cookie starts a new browser-session cookie.
// Every other route passes through without cookies or a session.
func Visitor(sessions *SessionStore, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !needsVisitor(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			deviceID := ""
			if c, err := r.Cookie(deviceCookieName); err == nil && len(c.Value) == 64 {
				deviceID = c.Value
			} else {
				id, err := generateToken()
				if err != nil {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				deviceID = id
				http.SetCookie(w, cookie(deviceCookieName, deviceID, deviceCookieMaxAge, secure))
			}

			var session *Session
			if c, err := r.Cookie(sessionCookieName); err == nil {
				session, _ = sessions.Get(c.Value)
			}
			if session == nil || session.DeviceID != deviceID {
				s, err := sessions.Create(deviceID)
				if err != nil {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				session = s
				http.SetCookie(w, cookie(sessionCookieName, session.ID, 0, secure))
			}

			next.ServeHTTP(w, r.WithContext(ContextWithVisitor(r.Context(), session)))
		})
	}
}

// VisitorFromContext extracts the visitor session from the request context.
func VisitorFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(visitorContextKey).(*Session)
	return s, ok && s != nil
}

// ContextWithVisitor returns a context carrying the given session.
// Handler tests use it to skip the cookie round trip.
func ContextWithVisitor(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, visitorContextKey, s)
}

// NewTestSession builds a detached session for handler tests.
func NewTestSession(deviceID string) *Session {
	now := time.Now()
	return &Session{
		ID:        "test-session",
		DeviceID:  deviceID,
		CreatedAt: now,
		Storage:   credential.NewMemoryStorage(),
		lastSeen:  now,
		attrs:     make(map[string]any),
	}
}

func cookie(name, value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   maxAge,
	}
}

func isStatic(path string) bool {
	return strings.HasPrefix(path, "/static/")
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
