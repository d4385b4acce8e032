package resource_test

import (
	"testing"

	"ministry/internal/domain/resource"
)

// TestResource_Validate tests validation of Resource.
func TestResource_Validate(t *testing.T) {
	tests := []struct {
		name    string
		res     resource.Resource
		wantErr error
	}{
		{name: "valid", res: resource.Resource{Slug: "leading-worship", Title: "Leading Worship", Category: resource.CategoryArticle, Body: "# Hi"}},
		{name: "empty title", res: resource.Resource{Slug: "a", Category: resource.CategoryArticle, Body: "x"}, wantErr: resource.ErrEmptyTitle},
		{name: "bad slug", res: resource.Resource{Slug: "Leading Worship", Title: "x", Category: resource.CategoryArticle, Body: "x"}, wantErr: resource.ErrInvalidSlug},
		{name: "bad category", res: resource.Resource{Slug: "a", Title: "x", Category: "video", Body: "x"}, wantErr: resource.ErrInvalidCategory},
		{name: "empty body", res: resource.Resource{Slug: "a", Title: "x", Category: resource.CategoryDevotional, Body: " "}, wantErr: resource.ErrEmptyBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.res.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Leading Worship", want: "leading-worship"},
		{in: "  Chords: G, C & D!  ", want: "chords-g-c-d"},
		{in: "Psalm 23", want: "psalm-23"},
		{in: "!!!", want: ""},
	}
	for _, tt := range tests {
		got := resource.Slugify(tt.in)
		if got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if got != "" && !resource.ValidSlug(got) {
			t.Errorf("Slugify(%q) = %q is not a valid slug", tt.in, got)
		}
	}
}
