package credential

import (
	"encoding/json"
	"errors"
	"strings"
)

// Storage keys. All three are written and cleared together, never individually.
const (
	KeyToken = "student_token"
	KeyRole  = "student_role"
	KeyUser  = "student_user"
)

// Keys lists every student credential key in storage order.
var Keys = []string{KeyToken, KeyRole, KeyUser}

// Domain errors
var (
	ErrEmptyToken  = errors.New("student token cannot be empty")
	ErrInvalidUser = errors.New("student user record must be a JSON object")
)

// StudentCredential is the credential issued by the external auth API after login.
type StudentCredential struct {
	Token string
	Role  string
	User  string // JSON object as returned by the API
}

// Validate checks the credential before it is stored.
// PRE: none
// POST: Returns nil if Token is set and User is empty or a JSON object
func (c StudentCredential) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return ErrEmptyToken
	}
	if c.User != "" {
		if _, err := c.UserRecord(); err != nil {
			return err
		}
	}
	return nil
}

// Values returns the credential as storage key/value pairs.
func (c StudentCredential) Values() map[string]string {
	return map[string]string{
		KeyToken: c.Token,
		KeyRole:  c.Role,
		KeyUser:  c.User,
	}
}

// UserRecord decodes the cached user record.
// POST: Returns ErrInvalidUser unless User holds a JSON object
func (c StudentCredential) UserRecord() (map[string]any, error) {
	var rec map[string]any
	if err := json.Unmarshal([]byte(c.User), &rec); err != nil || rec == nil {
		return nil, ErrInvalidUser
	}
	return rec, nil
}

// DisplayName picks a human-readable name from the user record, or "".
func (c StudentCredential) DisplayName() string {
	rec, err := c.UserRecord()
	if err != nil {
		return ""
	}
	for _, k := range []string{"name", "fullName", "firstName", "email"} {
		if s, ok := rec[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
