package orchestrators

import (
	"context"
	"fmt"
	"log/slog"

	credentialStore "ministry/internal/adapters/storage/credential"
	domain "ministry/internal/domain/credential"
)

// StudentAuthDeps holds the two storage scopes of one visitor.
// Either may be nil when the visitor has no such scope yet.
type StudentAuthDeps struct {
	Persistent credentialStore.Storage // survives browser restarts (device cookie)
	Session    credentialStore.Storage // dies with the browser session
}

// ExecuteClearStudentAuth removes every student credential key from both scopes.
// Storage failures are logged, never returned: the caller always proceeds as signed out.
// PRE: none
// POST: No student_* key remains in any reachable scope
// INVARIANT: idempotent
func ExecuteClearStudentAuth(ctx context.Context, deps StudentAuthDeps) {
	scopes := []struct {
		name    string
		storage credentialStore.Storage
	}{
		{"persistent", deps.Persistent},
		{"session", deps.Session},
	}
	for _, scope := range scopes {
		if scope.storage == nil {
			continue
		}
		if err := scope.storage.Remove(ctx, domain.Keys...); err != nil {
			slog.Error("student_auth_clear_failed", "scope", scope.name, "error", err)
		}
	}
	slog.Info("student_auth_cleared")
}

// StoreStudentAuthInput carries a freshly issued credential.
type StoreStudentAuthInput struct {
	Credential domain.StudentCredential
	Remember   bool
}

// ExecuteStoreStudentAuth writes the credential to session storage, and to
// persistent storage when Remember is set. Without Remember any persisted
// credential is removed so it cannot shadow the new one.
// PRE: deps.Session is non-nil; deps.Persistent is non-nil when Remember is set
// POST: All three keys are written together to each target scope
func ExecuteStoreStudentAuth(ctx context.Context, input StoreStudentAuthInput, deps StudentAuthDeps) error {
	if err := input.Credential.Validate(); err != nil {
		return err
	}
	if deps.Session == nil {
		return fmt.Errorf("store student auth: no session storage")
	}

	if err := writeCredential(ctx, deps.Session, input.Credential); err != nil {
		return fmt.Errorf("store student auth in session: %w", err)
	}

	switch {
	case input.Remember && deps.Persistent == nil:
		return fmt.Errorf("store student auth: no persistent storage")
	case input.Remember:
		if err := writeCredential(ctx, deps.Persistent, input.Credential); err != nil {
			return fmt.Errorf("store student auth persistently: %w", err)
		}
	case deps.Persistent != nil:
		if err := deps.Persistent.Remove(ctx, domain.Keys...); err != nil {
			return fmt.Errorf("drop persisted student auth: %w", err)
		}
	}

	slog.Info("student_auth_stored", "role", input.Credential.Role, "remember", input.Remember)
	return nil
}

func writeCredential(ctx context.Context, s credentialStore.Storage, c domain.StudentCredential) error {
	values := c.Values()
	for _, key := range domain.Keys {
		if err := s.Set(ctx, key, values[key]); err != nil {
			return err
		}
	}
	return nil
}
