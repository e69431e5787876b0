package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStaleStatus signals that a compare-and-set update lost against a concurrent status change.
	ErrStaleStatus = errors.New("article status changed concurrently")
)

// Priority ranks articles for the editorial chief.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority validates a priority string.
func ParsePriority(value string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(value))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	case "":
		return PriorityMedium, nil
	default:
		return "", fmt.Errorf("unknown priority %q", value)
	}
}

// Article is a news item ingested from exactly one source agency.
// (Source, NativeID) is the dedupe key.
type Article struct {
	ID             int64
	AgencyID       int64
	Source         string
	NativeID       int64
	Title          string
	Summary        string
	OriginalBody   string
	Body           string
	SourceCategory string
	CategoryIDs    []int64
	PublishedAt    time.Time
	SourceURL      string
	CoverImage     string
	EditorID       *int64
	Priority       Priority
	Status         Status
	ChangeCount    *int
	Comment        string
	RemotePostID   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasEditor reports whether an editor is assigned.
func (a *Article) HasEditor() bool {
	return a.EditorID != nil
}

// AssignedTo reports whether the article is assigned to the given editor.
func (a *Article) AssignedTo(editorID int64) bool {
	return a.EditorID != nil && *a.EditorID == editorID
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (a *Article) Clone() *Article {
	if a == nil {
		return nil
	}
	c := *a
	c.CategoryIDs = append([]int64(nil), a.CategoryIDs...)
	if a.EditorID != nil {
		id := *a.EditorID
		c.EditorID = &id
	}
	if a.ChangeCount != nil {
		n := *a.ChangeCount
		c.ChangeCount = &n
	}
	return &c
}

// Draft is the normalized output of a site adapter before it is persisted.
type Draft struct {
	NativeID         int64
	PublishedAt      time.Time
	CategoryLabel    string
	Title            string
	Summary          string
	Body             string
	ImageURL         string
	Image            []byte
	SourceURL        string
	TargetCategoryID int64
}

// ImageName returns the last path segment of the cover image URL.
func (d Draft) ImageName() string {
	name := d.ImageURL
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "cover"
	}
	return name
}

// Category is an editorially defined topic, optionally mirrored in the CMS.
type Category struct {
	ID         int64
	Title      string
	ExternalID *int64
}

// Agency is a configured external news website.
type Agency struct {
	ID           int64
	Title        string
	Slug         string
	Website      string
	CrawlEnabled bool
}

// SiteCategory maps a scrape target and a source label to a structured category.
// URL is empty for label-only rows.
type SiteCategory struct {
	ID         int64
	AgencyID   int64
	CategoryID int64
	URL        string
	Label      string
}
