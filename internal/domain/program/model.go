package program

import (
	"errors"
	"slices"
	"strings"
)

// Audiences a program is offered to, in display order.
const (
	AudienceAdults = "adults"
	AudienceYouth  = "youth"
	AudienceTeams  = "teams" // worship teams enrolling together
)

// ValidAudiences lists every audience in the order the programs page shows them.
var ValidAudiences = []string{AudienceAdults, AudienceYouth, AudienceTeams}

// MaxSummaryLength bounds the blurb shown on the programs page.
const MaxSummaryLength = 600

var (
	ErrEmptyName       = errors.New("program name cannot be empty")
	ErrInvalidAudience = errors.New("program audience must be 'adults', 'youth' or 'teams'")
	ErrSummaryTooLong  = errors.New("program summary cannot exceed 600 characters")
)

// Program is a training track offered by the academy.
type Program struct {
	ID        string
	Name      string
	Audience  string
	Summary   string
	Duration  string // free text, e.g. "10 weeks"
	SortOrder int
}

// Validate checks the fields the programs page relies on.
// POST: Returns nil if valid, a sentinel error otherwise
func (p *Program) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if !slices.Contains(ValidAudiences, p.Audience) {
		return ErrInvalidAudience
	}
	if len([]rune(p.Summary)) > MaxSummaryLength {
		return ErrSummaryTooLong
	}
	return nil
}

// AudienceLabel returns the heading used for an audience.
func AudienceLabel(a string) string {
	switch a {
	case AudienceAdults:
		return "Adults"
	case AudienceYouth:
		return "Youth"
	case AudienceTeams:
		return "Worship teams"
	default:
		return a
	}
}
