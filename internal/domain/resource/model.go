package resource

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Category constants
const (
	CategoryArticle    = "article"
	CategoryChordChart = "chord_chart"
	CategoryDevotional = "devotional"
	CategoryRecording  = "recording"
)

// ValidCategories contains all valid resource categories.
var ValidCategories = []string{CategoryArticle, CategoryChordChart, CategoryDevotional, CategoryRecording}

// Domain errors
var (
	ErrEmptyTitle      = errors.New("resource title cannot be empty")
	ErrInvalidSlug     = errors.New("resource slug must be lowercase letters, digits and hyphens")
	ErrInvalidCategory = errors.New("resource category must be one of: article, chord_chart, devotional, recording")
	ErrEmptyBody       = errors.New("resource body cannot be empty")
	ErrNotFound        = errors.New("resource not found")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Resource is a teaching resource page. Body supports Markdown formatting.
type Resource struct {
	ID          string
	Slug        string
	Title       string
	Category    string
	Body        string
	PublishedAt time.Time
}

// Validate checks if the Resource has valid data.
// PRE: Resource struct is populated
// POST: Returns nil if valid, error otherwise
func (r *Resource) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyTitle
	}
	if !ValidSlug(r.Slug) {
		return ErrInvalidSlug
	}
	if !isValidCategory(r.Category) {
		return ErrInvalidCategory
	}
	if strings.TrimSpace(r.Body) == "" {
		return ErrEmptyBody
	}
	return nil
}

// ValidSlug reports whether s can address a resource page.
func ValidSlug(s string) bool {
	return len(s) <= 100 && slugPattern.MatchString(s)
}

// Slugify derives a slug from a title.
// POST: result satisfies ValidSlug, or is "" when title has no letters or digits
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if len(s) > 100 {
		s = strings.TrimSuffix(s[:100], "-")
	}
	return s
}

// CategoryLabel returns a display label for a category.
func CategoryLabel(c string) string {
	switch c {
	case CategoryChordChart:
		return "Chord chart"
	case CategoryDevotional:
		return "Devotional"
	case CategoryRecording:
		return "Recording"
	default:
		return "Article"
	}
}

func isValidCategory(c string) bool {
	for _, v := range ValidCategories {
		if v == c {
			return true
		}
	}
	return false
}
