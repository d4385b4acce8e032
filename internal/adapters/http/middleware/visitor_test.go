package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// TestVisitor_IssuesCookiesAndReusesSession verifies a second request with the
// issued cookies sees the same session.
func TestVisitor_IssuesCookiesAndReusesSession(t *testing.T) {
	sessions := NewSessionStore()
	var seen []*Session
	handler := Visitor(sessions, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := VisitorFromContext(r.Context())
		if !ok {
			t.Fatal("no visitor in context")
		}
		seen = append(seen, s)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/schedule", nil))

	sessionCookie := cookieNamed(rr, sessionCookieName)
	deviceCookie := cookieNamed(rr, deviceCookieName)
	if sessionCookie == nil || deviceCookie == nil {
		t.Fatalf("cookies not issued: %v", rr.Result().Cookies())
	}
	if sessionCookie.MaxAge != 0 {
		t.Errorf("session cookie MaxAge = %d, want browser-session cookie", sessionCookie.MaxAge)
	}
	if deviceCookie.MaxAge <= 0 || !deviceCookie.HttpOnly {
		t.Errorf("device cookie = %+v, want long-lived HttpOnly", deviceCookie)
	}

	req := httptest.NewRequest("GET", "/schedule", nil)
	req.AddCookie(sessionCookie)
	req.AddCookie(deviceCookie)
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req)

	if len(seen) != 2 || seen[0] != seen[1] {
		t.Fatal("second request did not reuse the session")
	}
	if seen[0].DeviceID != deviceCookie.Value {
		t.Errorf("DeviceID = %q, want cookie value", seen[0].DeviceID)
	}
	if len(rr2.Result().Cookies()) != 0 {
		t.Errorf("cookies re-issued on a known visitor: %v", rr2.Result().Cookies())
	}
}

// Content pages and probes never allocate a session, however many cookieless requests arrive.
func TestVisitor_StatelessRoutes(t *testing.T) {
	sessions := NewSessionStore()
	handler := Visitor(sessions, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := VisitorFromContext(r.Context()); ok {
			t.Errorf("%s should not get a visitor", r.URL.Path)
		}
	}))
	paths := []string{
		"/", "/about", "/events", "/gallery", "/programs", "/resources/sunday-setlist",
		"/contact", "/healthz", "/readyz", "/static/site.css", "/schedules", "/students-day",
	}
	for range 3 {
		for _, path := range paths {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
			if len(rr.Result().Cookies()) != 0 {
				t.Errorf("%s issued cookies", path)
			}
		}
	}
	if sessions.Len() != 0 {
		t.Errorf("Len = %d, want 0", sessions.Len())
	}
}

func TestNeedsVisitor(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/schedule", true},
		{"/schedule/date", true},
		{"/student", true},
		{"/student/login", true},
		{"/clear-auth", true},
		{"/", false},
		{"/about", false},
		{"/schedules", false},
		{"/clear-auth/x", false},
	}
	for _, tt := range tests {
		if got := needsVisitor(tt.path); got != tt.want {
			t.Errorf("needsVisitor(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSessionStore_IdleExpiry(t *testing.T) {
	ss := NewSessionStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ss.now = func() time.Time { return now }

	s, err := ss.Create(strings.Repeat("a", 64))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	now = now.Add(SessionIdleTimeout - time.Minute)
	if _, ok := ss.Get(s.ID); !ok {
		t.Fatal("session expired before the idle timeout")
	}

	// Get refreshed the idle timer.
	now = now.Add(SessionIdleTimeout - time.Minute)
	if _, ok := ss.Get(s.ID); !ok {
		t.Fatal("touched session expired")
	}

	now = now.Add(SessionIdleTimeout + time.Minute)
	if n := ss.PurgeExpired(); n != 1 {
		t.Errorf("PurgeExpired = %d, want 1", n)
	}
	if _, ok := ss.Get(s.ID); ok {
		t.Error("expired session still readable")
	}
	if ss.Len() != 0 {
		t.Errorf("Len = %d, want 0", ss.Len())
	}
}

func TestSession_Attr(t *testing.T) {
	s := NewTestSession("dev")
	calls := 0
	init := func() any { calls++; return &calls }
	a := s.Attr("schedule", init)
	b := s.Attr("schedule", init)
	if a != b || calls != 1 {
		t.Errorf("Attr created %d values, want 1", calls)
	}
}
