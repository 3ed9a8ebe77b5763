package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// StoryIDPrefix prefixes every generated story id
	StoryIDPrefix = "story"

	DefaultStoryTitle     = "Untitled Story"
	DefaultStoryCategory  = "other"
	MinStoryContentLength = 10
)

// StoryStatus is the moderation state of a story
type StoryStatus string

const (
	StoryStatusPending  StoryStatus = "pending"
	StoryStatusApproved StoryStatus = "approved"
	StoryStatusDenied   StoryStatus = "denied"
)

// Valid reports whether s is one of the known statuses
func (s StoryStatus) Valid() bool {
	switch s {
	case StoryStatusPending, StoryStatusApproved, StoryStatusDenied:
		return true
	}
	return false
}

// Story represents a user submitted story
type Story struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Content    string      `json:"content"`
	Category   string      `json:"category"`
	Status     StoryStatus `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
	ReviewedAt *time.Time  `json:"reviewed_at"`
}

// Clone returns a deep copy of the story
func (s *Story) Clone() *Story {
	c := *s
	if s.ReviewedAt != nil {
		reviewed := *s.ReviewedAt
		c.ReviewedAt = &reviewed
	}
	return &c
}

// StoryDraft is the caller supplied part of a story before intake
type StoryDraft struct {
	Title    string
	Content  string
	Category string
}

// Validate checks the draft content length after trimming
func (d StoryDraft) Validate() error {
	length := utf8.RuneCountInString(strings.TrimSpace(d.Content))
	if length < MinStoryContentLength {
		return NewValidationError("content",
			"story content is required and must be at least %d characters; you provided %d characters",
			MinStoryContentLength, length)
	}
	return nil
}

// Normalize trims the content and fills in the default title and category
func (d StoryDraft) Normalize() StoryDraft {
	d.Content = strings.TrimSpace(d.Content)
	if strings.TrimSpace(d.Title) == "" {
		d.Title = DefaultStoryTitle
	}
	if strings.TrimSpace(d.Category) == "" {
		d.Category = DefaultStoryCategory
	}
	return d
}

// Decision is a moderator's verdict on a pending story
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

// Status maps the decision to the status it produces
func (d Decision) Status() (StoryStatus, error) {
	switch d {
	case DecisionApprove:
		return StoryStatusApproved, nil
	case DecisionDeny:
		return StoryStatusDenied, nil
	}
	return "", NewValidationError("decision", "invalid decision %q: must be one of approve, deny", string(d))
}

// CanTransition reports whether a story in status from may move to status to.
// Only pending stories can be decided; repeating the same decision is allowed.
func CanTransition(from, to StoryStatus) bool {
	if to != StoryStatusApproved && to != StoryStatusDenied {
		return false
	}
	return from == StoryStatusPending || from == to
}
