package gallery

import (
	"errors"
	"path"
	"strings"
)

// Domain errors
var (
	ErrEmptyImageURL = errors.New("gallery image URL cannot be empty")
)

// imageExtensions lists object suffixes treated as displayable images.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// Item is one photo shown on the gallery page.
type Item struct {
	ID        string
	Title     string
	ImageURL  string
	Caption   string
	SortOrder int
}

// Validate checks if the Item has valid data.
func (i *Item) Validate() error {
	if strings.TrimSpace(i.ImageURL) == "" {
		return ErrEmptyImageURL
	}
	return nil
}

// IsImageKey reports whether an object key names a displayable image.
func IsImageKey(key string) bool {
	ext := strings.ToLower(path.Ext(key))
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// TitleFromKey derives a display title from an object key,
// e.g. "2025/summer-camp_night.jpg" -> "Summer camp night".
func TitleFromKey(key string) string {
	base := strings.TrimSuffix(path.Base(key), path.Ext(key))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return ""
	}
	return strings.ToUpper(base[:1]) + base[1:]
}
