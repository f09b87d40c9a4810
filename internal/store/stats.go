package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Stats is a snapshot of corpus-level counts.
type Stats struct {
	TotalCount        int            `json:"total_count"`
	CountBySource     map[string]int `json:"count_by_source"`
	CountByCategory   map[string]int `json:"count_by_category"`
	EarliestPublished *time.Time     `json:"earliest_published,omitempty"`
	LatestPublished   *time.Time     `json:"latest_published,omitempty"`
	AvgPoints         float64        `json:"avg_points"`
	MaxPoints         int            `json:"max_points"`
	TotalComments     int            `json:"total_comments"`
	TotalReactions    int            `json:"total_reactions"`
}

type countBucket struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

type engagementRow struct {
	AvgPoints      float64 `db:"avg_points"`
	MaxPoints      int     `db:"max_points"`
	TotalComments  int     `db:"total_comments"`
	TotalReactions int     `db:"total_reactions"`
}

// Stats computes all counts inside one transaction so the fields cannot
// tear against a concurrent ingestion run.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, newStorageError("starting stats transaction", err)
	}
	defer tx.Rollback()

	stats := &Stats{
		CountBySource:   make(map[string]int),
		CountByCategory: make(map[string]int),
	}

	if err := tx.GetContext(ctx, &stats.TotalCount, `SELECT COUNT(*) FROM articles`); err != nil {
		return nil, newStorageError("counting articles", err)
	}

	var bySource []countBucket
	err = tx.SelectContext(ctx, &bySource,
		`SELECT source AS key, COUNT(*) AS count FROM articles GROUP BY source`)
	if err != nil {
		return nil, newStorageError("counting articles by source", err)
	}
	for _, b := range bySource {
		stats.CountBySource[b.Key] = b.Count
	}

	var byCategory []countBucket
	err = tx.SelectContext(ctx, &byCategory,
		`SELECT COALESCE(category, 'Uncategorized') AS key, COUNT(*) AS count
		 FROM articles GROUP BY COALESCE(category, 'Uncategorized')`)
	if err != nil {
		return nil, newStorageError("counting articles by category", err)
	}
	for _, b := range byCategory {
		stats.CountByCategory[b.Key] = b.Count
	}

	// MIN/MAX strip the column's declared type under this driver, so the
	// boundary timestamps come from ordered single-row selects instead.
	earliest, err := boundaryPublishDate(ctx, tx, "ASC")
	if err != nil {
		return nil, err
	}
	stats.EarliestPublished = earliest

	latest, err := boundaryPublishDate(ctx, tx, "DESC")
	if err != nil {
		return nil, err
	}
	stats.LatestPublished = latest

	var eng engagementRow
	err = tx.GetContext(ctx, &eng,
		`SELECT COALESCE(AVG(points), 0)    AS avg_points,
		        COALESCE(MAX(points), 0)    AS max_points,
		        COALESCE(SUM(comments), 0)  AS total_comments,
		        COALESCE(SUM(reactions), 0) AS total_reactions
		 FROM articles`)
	if err != nil {
		return nil, newStorageError("aggregating engagement", err)
	}
	stats.AvgPoints = eng.AvgPoints
	stats.MaxPoints = eng.MaxPoints
	stats.TotalComments = eng.TotalComments
	stats.TotalReactions = eng.TotalReactions

	if err := tx.Commit(); err != nil {
		return nil, newStorageError("committing stats transaction", err)
	}
	return stats, nil
}

type publishDateQuerier interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

func boundaryPublishDate(ctx context.Context, q publishDateQuerier, direction string) (*time.Time, error) {
	var ts time.Time
	err := q.GetContext(ctx, &ts,
		`SELECT published_at FROM articles ORDER BY published_at `+direction+` LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, newStorageError("finding boundary publish date", err)
	}
	utc := ts.UTC()
	return &utc, nil
}
