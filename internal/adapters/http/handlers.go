package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"ministry/internal/adapters/http/middleware"
	credentialStore "ministry/internal/adapters/storage/credential"
	domainEvent "ministry/internal/domain/event"
	domainProgram "ministry/internal/domain/program"
	domainResource "ministry/internal/domain/resource"
	"ministry/internal/domain/schedule"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set), preventing XSS.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

//go:embed templates/*.html
var templateFS embed.FS

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func isHTMLRequest(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "application/xhtml+xml")
}

func isJSONRequest(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// siteNow returns the current time in the site's location.
func siteNow() time.Time {
	return timeNow().In(siteLocation)
}

// visitorStorage returns the two credential scopes of the requesting visitor.
// Either is nil when the request carries no visitor or no store is configured.
func visitorStorage(r *http.Request) (persistent, session credentialStore.Storage) {
	v, ok := middleware.VisitorFromContext(r.Context())
	if !ok {
		return nil, nil
	}
	if v.Storage != nil {
		session = v.Storage
	}
	if stores != nil && stores.CredentialStore != nil && v.DeviceID != "" {
		persistent = stores.CredentialStore.ForDevice(v.DeviceID)
	}
	return persistent, session
}

func renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data any) {
	renderTemplateStatus(w, r, http.StatusOK, templateName, data)
}

// renderTemplateStatus renders templateName inside layout.html with the given status code.
func renderTemplateStatus(w http.ResponseWriter, r *http.Request, status int, templateName string, data any) {
	path := r.URL.Path
	funcMap := template.FuncMap{
		"csrfToken":   func() string { return csrf.Token(r) },
		"currentPath": func() string { return path },
		"renderMarkdown": func(md string) template.HTML {
			var buf bytes.Buffer
			if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
				return template.HTML(template.HTMLEscapeString(md))
			}
			return template.HTML(buf.String())
		},
		"categoryLabel": domainResource.CategoryLabel,
		"audienceLabel": domainProgram.AudienceLabel,
		"eventWhen":     eventWhen,
		"monthParam":    func(d schedule.Date) string { return d.In(time.UTC).Format(monthLayout) },
		"year":          func() int { return siteNow().Year() },
	}

	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+templateName)
	if err != nil {
		internalError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// eventWhen formats an event's date range for listings,
// e.g. "Sat 7 Nov, 9:00 AM" or "Fri 13 Nov to Sun 15 Nov".
func eventWhen(e domainEvent.Event) string {
	start := e.StartsAt.In(siteLocation)
	if !e.IsMultiDay() {
		return start.Format("Mon 2 Jan, 3:04 PM")
	}
	return start.Format("Mon 2 Jan") + " to " + e.EndsAt.In(siteLocation).Format("Mon 2 Jan")
}
