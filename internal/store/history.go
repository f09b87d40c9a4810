package store

import (
	"context"
	"time"

	"techtrends/aggregator/internal/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// RecordSearch appends one row to the search history.
func (s *Store) RecordSearch(ctx context.Context, query string, resultsCount int) error {
	rec := models.NewSearchRecord(query, resultsCount)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_history (query, results_count, searched_at) VALUES (?, ?, ?)`,
		rec.Query, rec.ResultsCount, rec.SearchedAt)
	if err != nil {
		return newStorageError("recording search", err)
	}
	return nil
}

// SearchHistory returns recent searches, newest first. When both before
// values are set, only rows strictly older than that (timestamp, id)
// position are returned, which gives stable keyset pagination.
func (s *Store) SearchHistory(ctx context.Context, limit int, beforeTime *time.Time, beforeID *int64) ([]models.SearchRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	query := `SELECT * FROM search_history`
	var args []any
	if beforeTime != nil && beforeID != nil {
		query += ` WHERE (searched_at < ?) OR (searched_at = ? AND id < ?)`
		t := beforeTime.UTC()
		args = append(args, t, t, *beforeID)
	}
	query += ` ORDER BY searched_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	records := []models.SearchRecord{}
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, newStorageError("loading search history", err)
	}
	return records, nil
}
