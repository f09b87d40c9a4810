package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"techtrends/aggregator/internal/models"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// ErrBadSortField rejects sort fields outside the supported set.
var ErrBadSortField = errors.New("unsupported sort field")

// sortColumns whitelists the sortable columns. Identifiers are never
// interpolated from user input directly.
var sortColumns = map[string]string{
	"points":       "points",
	"comments":     "comments",
	"reactions":    "reactions",
	"published_at": "published_at",
}

// QueryOpts filters, orders and pages a corpus query. Zero values mean
// unfiltered. A Category of "uncategorized" (any case) selects articles
// without a category.
type QueryOpts struct {
	Source   string
	Category string
	Search   string
	SortBy   string
	Desc     bool
	Limit    int
	Offset   int
}

// Query returns articles matching opts. Results are ordered by the sort
// field with ascending identity as the deterministic tie-break; without an
// explicit sort the newest articles come first.
func (s *Store) Query(ctx context.Context, opts QueryOpts) ([]models.Article, error) {
	column := "published_at"
	desc := true
	if opts.SortBy != "" {
		col, ok := sortColumns[strings.ToLower(opts.SortBy)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrBadSortField, opts.SortBy)
		}
		column = col
		desc = opts.Desc
	}

	var (
		where []string
		args  []any
	)
	if opts.Source != "" {
		where = append(where, "source = ?")
		args = append(args, opts.Source)
	}
	if opts.Category != "" {
		if strings.EqualFold(opts.Category, "uncategorized") {
			where = append(where, "category IS NULL")
		} else {
			where = append(where, "category = ?")
			args = append(args, opts.Category)
		}
	}
	if opts.Search != "" {
		where = append(where, "(title LIKE ? OR description LIKE ?)")
		pattern := "%" + opts.Search + "%"
		args = append(args, pattern, pattern)
	}

	query := "SELECT * FROM articles"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, identity ASC", column, direction)

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	articles := []models.Article{}
	if err := s.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, newStorageError("querying articles", err)
	}
	return articles, nil
}
