package web

import (
	"errors"
	"net/http"
	"slices"

	"ministry/internal/application/orchestrators"
	"ministry/internal/application/projections"
	domainContact "ministry/internal/domain/contact"
	domainGallery "ministry/internal/domain/gallery"
	domainResource "ministry/internal/domain/resource"
)

// eventsPageLimit caps the events listing.
const eventsPageLimit = 50

// contactValidationErrors are shown back to the visitor; anything else is a 500.
var contactValidationErrors = []error{
	domainContact.ErrEmptyName,
	domainContact.ErrNameTooLong,
	domainContact.ErrInvalidEmail,
	domainContact.ErrSubjectTooLong,
	domainContact.ErrEmptyBody,
	domainContact.ErrBodyTooLong,
}

func siteContentDeps() projections.SiteContentDeps {
	return projections.SiteContentDeps{
		Events:    stores.EventStore,
		Programs:  stores.ProgramStore,
		Resources: stores.ResourceStore,
		Gallery:   stores.GallerySource,
		Now:       timeNow,
	}
}

// handleHome handles GET /
func handleHome(w http.ResponseWriter, r *http.Request) {
	page, err := projections.QueryHomePage(r.Context(), siteContentDeps())
	if err != nil {
		internalError(w, err)
		return
	}
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, page)
		return
	}
	renderTemplate(w, r, "home.html", map[string]any{
		"Title": "Welcome",
		"Page":  page,
	})
}

// handleAbout handles GET /about
func handleAbout(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, "about.html", map[string]any{
		"Title": "About",
	})
}

// handleEvents handles GET /events
func handleEvents(w http.ResponseWriter, r *http.Request) {
	page, err := projections.QueryEventsPage(r.Context(), eventsPageLimit, siteContentDeps())
	if err != nil {
		internalError(w, err)
		return
	}
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, page)
		return
	}
	renderTemplate(w, r, "events.html", map[string]any{
		"Title": "Events",
		"Page":  page,
	})
}

// handleGallery handles GET /gallery
func handleGallery(w http.ResponseWriter, r *http.Request) {
	var items []domainGallery.Item
	if stores.GallerySource != nil {
		items = projections.QueryGallery(r.Context(), siteContentDeps())
	}
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return
	}
	renderTemplate(w, r, "gallery.html", map[string]any{
		"Title": "Gallery",
		"Items": items,
	})
}

// handlePrograms handles GET /programs
func handlePrograms(w http.ResponseWriter, r *http.Request) {
	page, err := projections.QueryProgramsPage(r.Context(), siteContentDeps())
	if err != nil {
		internalError(w, err)
		return
	}
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, page)
		return
	}
	renderTemplate(w, r, "programs.html", map[string]any{
		"Title": "Programs",
		"Page":  page,
	})
}

// handleResources handles GET /resources?category=...
// An unknown category lists everything.
func handleResources(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if !slices.Contains(domainResource.ValidCategories, category) {
		category = ""
	}
	list, err := projections.QueryResources(r.Context(), category, siteContentDeps())
	if err != nil {
		internalError(w, err)
		return
	}
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, list)
		return
	}
	renderTemplate(w, r, "resources.html", map[string]any{
		"Title":      "Resources",
		"Resources":  list,
		"Category":   category,
		"Categories": domainResource.ValidCategories,
	})
}

// handleResource handles GET /resources/{slug}
func handleResource(w http.ResponseWriter, r *http.Request) {
	res, err := projections.QueryResource(r.Context(), r.PathValue("slug"), siteContentDeps())
	if errors.Is(err, domainResource.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, res)
		return
	}
	renderTemplate(w, r, "resource.html", map[string]any{
		"Title":    res.Title,
		"Resource": res,
	})
}

// handleContactForm handles GET /contact
func handleContactForm(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, "contact.html", map[string]any{
		"Title": "Contact",
		"Sent":  r.URL.Query().Get("sent") == "1",
		"Form":  orchestrators.SubmitContactInput{},
	})
}

// handleContactSubmit handles POST /contact from the form or as JSON.
func handleContactSubmit(w http.ResponseWriter, r *http.Request) {
	var input orchestrators.SubmitContactInput
	jsonBody := isJSONRequest(r)
	if jsonBody {
		var body struct {
			Name    string `json:"name"`
			Email   string `json:"email"`
			Subject string `json:"subject"`
			Message string `json:"message"`
		}
		if err := strictDecode(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		input = orchestrators.SubmitContactInput{Name: body.Name, Email: body.Email, Subject: body.Subject, Body: body.Message}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		input = orchestrators.SubmitContactInput{
			Name:    r.FormValue("Name"),
			Email:   r.FormValue("Email"),
			Subject: r.FormValue("Subject"),
			Body:    r.FormValue("Message"),
		}
	}

	deps := orchestrators.SubmitContactDeps{
		ContactStore: stores.ContactStore,
		Inbox:        contactInbox,
		GenerateID:   generateID,
		Now:          timeNow,
	}
	if stores.OutboxStore != nil {
		deps.Outbox = stores.OutboxStore
	} else {
		deps.Inbox = ""
	}

	msg, err := orchestrators.ExecuteSubmitContact(r.Context(), input, deps)
	if err != nil {
		if !slices.ContainsFunc(contactValidationErrors, func(v error) bool { return errors.Is(err, v) }) {
			internalError(w, err)
			return
		}
		if jsonBody {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		renderTemplateStatus(w, r, http.StatusUnprocessableEntity, "contact.html", map[string]any{
			"Title": "Contact",
			"Error": err.Error(),
			"Form":  input,
		})
		return
	}

	if jsonBody {
		writeJSON(w, http.StatusCreated, map[string]string{"id": msg.ID})
		return
	}
	http.Redirect(w, r, "/contact?sent=1", http.StatusSeeOther)
}
