package models

import (
	"fmt"
	"time"
)

// Source identifies the external system an article was ingested from.
type Source string

const (
	SourceHackerNews Source = "hackernews"
	SourceDevTo      Source = "devto"
)

// String returns the wire/database representation of the source.
func (s Source) String() string {
	return string(s)
}

// ParseSource converts a string into a known Source.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceHackerNews, SourceDevTo:
		return Source(s), nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Article represents a row in the 'articles' table. The identity column is
// the deduplication key and is derived from the source plus its native item
// identifier (or URL), so re-ingesting the same item always maps to the
// same row.
type Article struct {
	Identity        string    `db:"identity" json:"identity"`
	Source          Source    `db:"source" json:"source"`
	Title           string    `db:"title" json:"title"`
	URL             string    `db:"url" json:"url"`
	Author          string    `db:"author" json:"author"`
	Description     string    `db:"description" json:"description"`
	PublishedAt     time.Time `db:"published_at" json:"published_at"`
	PublishedApprox bool      `db:"published_approx" json:"published_approx"`
	Points          int       `db:"points" json:"points"`
	Comments        int       `db:"comments" json:"comments"`
	Reactions       int       `db:"reactions" json:"reactions"`
	ReadingTime     int       `db:"reading_time" json:"reading_time"`
	Tags            string    `db:"tags" json:"tags"`
	Category        *string   `db:"category" json:"category"`
	IngestedAt      time.Time `db:"ingested_at" json:"ingested_at"`
}

// Engagement returns the combined engagement count across all metrics.
func (a *Article) Engagement() int {
	return a.Points + a.Comments + a.Reactions
}

// CategoryLabel returns the assigned category, or "Uncategorized" when none
// was assigned.
func (a *Article) CategoryLabel() string {
	if a.Category == nil || *a.Category == "" {
		return "Uncategorized"
	}
	return *a.Category
}
