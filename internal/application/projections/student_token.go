package projections

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ministry/internal/adapters/schedapi"
	credentialStore "ministry/internal/adapters/storage/credential"
	domain "ministry/internal/domain/credential"
)

// StudentTokenDeps holds the two storage scopes of one visitor. Either may be nil.
type StudentTokenDeps struct {
	Persistent credentialStore.Storage
	Session    credentialStore.Storage
}

// scopes returns the storages in lookup order: persistent wins over session.
func (d StudentTokenDeps) scopes() []credentialStore.Storage {
	return []credentialStore.Storage{d.Persistent, d.Session}
}

// QueryGetStudentToken returns the stored student token.
// Persistent storage is consulted first, then session storage.
// PRE: none
// POST: ok is false when neither scope holds a non-empty token; read errors count as absent
func QueryGetStudentToken(ctx context.Context, deps StudentTokenDeps) (token string, ok bool) {
	cred, ok := QueryStudentCredential(ctx, deps)
	return cred.Token, ok
}

// QueryStudentCredential returns all three credential values from the first scope holding a token.
// Values are never mixed across scopes.
func QueryStudentCredential(ctx context.Context, deps StudentTokenDeps) (domain.StudentCredential, bool) {
	for _, s := range deps.scopes() {
		if s == nil {
			continue
		}
		token, found, err := s.Get(ctx, domain.KeyToken)
		if err != nil {
			slog.Warn("student_token_read_failed", "error", err)
			continue
		}
		if !found || token == "" {
			continue
		}
		cred := domain.StudentCredential{Token: token}
		cred.Role, _, _ = s.Get(ctx, domain.KeyRole)
		cred.User, _, _ = s.Get(ctx, domain.KeyUser)
		return cred, true
	}
	return domain.StudentCredential{}, false
}

// ProfileFetcher asks the external auth API about a token.
type ProfileFetcher interface {
	StudentProfile(ctx context.Context, token string) (schedapi.Profile, error)
}

// ValidateStudentTokenDeps holds dependencies for ValidateStudentToken.
type ValidateStudentTokenDeps struct {
	Profiles ProfileFetcher
	Now      func() time.Time
}

// QueryValidateStudentToken reports whether the external auth API still accepts token.
// Empty tokens and JWTs whose exp claim has passed are rejected without a network call.
// PRE: none
// POST: true only for a 2xx answer with success=true and a user object; every failure is false
func QueryValidateStudentToken(ctx context.Context, token string, deps ValidateStudentTokenDeps) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	if expiredJWT(token, deps.Now()) {
		slog.Info("student_token_expired_locally")
		return false
	}

	profile, err := deps.Profiles.StudentProfile(ctx, token)
	if err != nil {
		slog.Warn("student_token_check_failed", "error", err)
		return false
	}
	valid := profile.Success && profile.HasUser()
	if !valid {
		slog.Info("student_token_rejected", "status", profile.Status)
	}
	return valid
}

// expiredJWT reports whether token is a JWT with an exp claim before now.
// Signatures are not checked: the API is the authority, this only saves a round trip.
// Opaque tokens and JWTs without exp are never considered expired.
func expiredJWT(token string, now time.Time) bool {
	if strings.Count(token, ".") != 2 {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
