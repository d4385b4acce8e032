package web

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"ministry/internal/adapters/schedapi"
	"ministry/internal/application/orchestrators"
	"ministry/internal/application/projections"
	domainCredential "ministry/internal/domain/credential"
)

func studentAuthDeps(r *http.Request) orchestrators.StudentAuthDeps {
	persistent, session := visitorStorage(r)
	return orchestrators.StudentAuthDeps{Persistent: persistent, Session: session}
}

// handleStudentPortal handles GET /student
// Shows the cached student record when the stored token is still accepted;
// otherwise clears the stored credential and sends the visitor to the login page.
func handleStudentPortal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authDeps := studentAuthDeps(r)
	tokenDeps := projections.StudentTokenDeps{Persistent: authDeps.Persistent, Session: authDeps.Session}

	cred, ok := projections.QueryStudentCredential(ctx, tokenDeps)
	valid := ok && projections.QueryValidateStudentToken(ctx, cred.Token, projections.ValidateStudentTokenDeps{
		Profiles: api,
		Now:      timeNow,
	})
	if !valid {
		if ok {
			slog.Info("student_token_rejected")
			orchestrators.ExecuteClearStudentAuth(ctx, authDeps)
		}
		if !isHTMLRequest(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "sign in required"})
			return
		}
		http.Redirect(w, r, "/student/login", http.StatusSeeOther)
		return
	}

	record, _ := cred.UserRecord()
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, map[string]any{"role": cred.Role, "user": record})
		return
	}
	renderTemplate(w, r, "student.html", map[string]any{
		"Title":  "Student portal",
		"Name":   cred.DisplayName(),
		"Role":   cred.Role,
		"Record": record,
	})
}

// handleStudentLoginForm handles GET /student/login
func handleStudentLoginForm(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, "student_login.html", map[string]any{
		"Title":    "Student sign in",
		"Email":    "",
		"Remember": false,
	})
}

// handleStudentLogin handles POST /student/login from the form or as JSON.
func handleStudentLogin(w http.ResponseWriter, r *http.Request) {
	var email, password string
	var remember bool
	jsonBody := isJSONRequest(r)
	if jsonBody {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Remember bool   `json:"remember"`
		}
		if err := strictDecode(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		email, password, remember = body.Email, body.Password, body.Remember
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		email = r.FormValue("Email")
		password = r.FormValue("Password")
		remember = r.FormValue("Remember") == "on"
	}

	fail := func(status int, msg string) {
		if jsonBody {
			writeJSON(w, status, map[string]string{"error": msg})
			return
		}
		renderTemplateStatus(w, r, status, "student_login.html", map[string]any{
			"Title":    "Student sign in",
			"Error":    msg,
			"Email":    email,
			"Remember": remember,
		})
	}

	if email == "" || password == "" {
		fail(http.StatusUnprocessableEntity, "Email and password are required.")
		return
	}

	result, err := api.StudentLogin(r.Context(), email, password)
	if err != nil {
		var apiErr *schedapi.Error
		if errors.As(err, &apiErr) && apiErr.Kind == schedapi.KindBusiness {
			fail(http.StatusUnauthorized, apiErr.UserMessage())
			return
		}
		slog.Warn("student_login_failed", "error", err)
		fail(http.StatusBadGateway, schedapi.UserMessage(err))
		return
	}

	cred := domainCredential.StudentCredential{Token: result.Token, Role: result.Role}
	if user := bytes.TrimSpace(result.User); bytes.HasPrefix(user, []byte("{")) {
		cred.User = string(user)
	}
	input := orchestrators.StoreStudentAuthInput{Credential: cred, Remember: remember}
	if err := orchestrators.ExecuteStoreStudentAuth(r.Context(), input, studentAuthDeps(r)); err != nil {
		internalError(w, err)
		return
	}
	slog.Info("student_signed_in", "role", cred.Role, "remember", remember)

	if jsonBody {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "role": cred.Role})
		return
	}
	http.Redirect(w, r, "/student", http.StatusSeeOther)
}

// handleStudentLogout handles POST /student/logout
func handleStudentLogout(w http.ResponseWriter, r *http.Request) {
	orchestrators.ExecuteClearStudentAuth(r.Context(), studentAuthDeps(r))
	if isJSONRequest(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/student/login", http.StatusSeeOther)
}

// handleClearAuth handles GET /clear-auth
// Visiting the page clears the stored credential; the page script also wipes
// any copies the browser kept in localStorage or sessionStorage.
func handleClearAuth(w http.ResponseWriter, r *http.Request) {
	orchestrators.ExecuteClearStudentAuth(r.Context(), studentAuthDeps(r))
	w.Header().Set("Cache-Control", "no-store")
	renderTemplate(w, r, "clear_auth.html", map[string]any{
		"Title": "Signed out",
		"Keys":  domainCredential.Keys,
	})
}
