package schedapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

const (
	profilePath = "/student/profile"
	loginPath   = "/student/login"
)

// Profile is the decoded answer of GET /student/profile.
type Profile struct {
	Status  int
	Success bool
	User    json.RawMessage // nil when absent or JSON null
}

// HasUser reports whether the answer carries a user object.
func (p Profile) HasUser() bool {
	trimmed := bytes.TrimSpace(p.User)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// StudentProfile fetches the profile for a bearer token.
// Non-2xx answers are returned as a Profile with Success false, not as errors;
// errors mean no decodable answer was obtained.
func (c *Client) StudentProfile(ctx context.Context, token string) (Profile, error) {
	op := http.MethodGet + " " + profilePath
	r, err := c.do(ctx, http.MethodGet, profilePath, token, nil)
	if err != nil {
		return Profile{}, asAPIError(op, err)
	}
	var body struct {
		Success bool            `json:"success"`
		User    json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(r.body, &body); err != nil {
		if r.status < 200 || r.status > 299 {
			return Profile{Status: r.status}, nil
		}
		return Profile{}, &Error{Kind: KindMalformed, Op: op, Status: r.status, Err: err}
	}
	ok := r.status >= 200 && r.status <= 299 && body.Success
	return Profile{Status: r.status, Success: ok, User: body.User}, nil
}

// LoginResult is the credential issued by POST /student/login.
type LoginResult struct {
	Token string
	Role  string
	User  json.RawMessage
}

// StudentLogin exchanges email and password for a bearer token.
// POST: Returns an *Error of KindBusiness carrying the service message on rejection
func (c *Client) StudentLogin(ctx context.Context, email, password string) (LoginResult, error) {
	op := http.MethodPost + " " + loginPath
	r, err := c.do(ctx, http.MethodPost, loginPath, "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return LoginResult{}, asAPIError(op, err)
	}
	if r.status < 200 || r.status > 299 {
		return LoginResult{}, classify(op, r)
	}

	var body struct {
		envelope
		Token string          `json:"token"`
		Role  string          `json:"role"`
		User  json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(r.body, &body); err != nil {
		return LoginResult{}, &Error{Kind: KindMalformed, Op: op, Status: r.status, Err: err}
	}
	if !body.Success {
		return LoginResult{}, &Error{Kind: KindBusiness, Op: op, Status: r.status, Message: body.text()}
	}
	if body.Token == "" {
		return LoginResult{}, &Error{Kind: KindMalformed, Op: op, Status: r.status, Message: "login response has no token"}
	}
	return LoginResult{Token: body.Token, Role: body.Role, User: body.User}, nil
}
