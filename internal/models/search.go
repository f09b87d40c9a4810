package models

import "time"

// SearchRecord represents a row in the 'search_history' table. One row is
// written per text search served by the API layer.
type SearchRecord struct {
	ID           int64     `db:"id" json:"id"`
	Query        string    `db:"query" json:"query"`
	ResultsCount int       `db:"results_count" json:"results_count"`
	SearchedAt   time.Time `db:"searched_at" json:"searched_at"`
}

// NewSearchRecord creates a new SearchRecord with default values.
func NewSearchRecord(query string, resultsCount int) *SearchRecord {
	return &SearchRecord{
		Query:        query,
		ResultsCount: resultsCount,
		SearchedAt:   time.Now().UTC(),
	}
}
