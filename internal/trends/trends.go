// Package trends derives keyword and category statistics from the stored
// corpus. Every computation reads a snapshot of the current state and holds
// nothing between calls, so it is safe to run alongside ingestion.
package trends

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"techtrends/aggregator/internal/database"
)

const defaultTopN = 20

// Window bounds a trend computation by publish date. Since is inclusive,
// Until exclusive, and a zero value leaves that side unbounded.
type Window struct {
	Since time.Time
	Until time.Time
}

func (w Window) clause() (string, []any) {
	var conds []string
	var args []any
	if !w.Since.IsZero() {
		conds = append(conds, "published_at >= ?")
		args = append(args, w.Since.UTC())
	}
	if !w.Until.IsZero() {
		conds = append(conds, "published_at < ?")
		args = append(args, w.Until.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// KeywordCount is one ranked keyword with its frequency.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// CategoryTrend summarizes one category over a window.
type CategoryTrend struct {
	ArticleCount    int `json:"article_count"`
	TotalEngagement int `json:"total_engagement"`
}

// Aggregator computes trends over the articles corpus.
type Aggregator struct {
	db *database.DB
}

// New creates an Aggregator on an open database handle.
func New(db *database.DB) *Aggregator {
	return &Aggregator{db: db}
}

// TrendingKeywords counts title keywords across the window and returns the
// topN most frequent, ordered by descending count with ties broken
// alphabetically ascending. A topN <= 0 falls back to a default of 20.
func (a *Aggregator) TrendingKeywords(ctx context.Context, window Window, topN int) ([]KeywordCount, error) {
	if topN <= 0 {
		topN = defaultTopN
	}

	where, args := window.clause()
	var titles []string
	if err := a.db.SelectContext(ctx, &titles, "SELECT title FROM articles"+where, args...); err != nil {
		return nil, fmt.Errorf("selecting titles: %w", err)
	}

	counts := make(map[string]int)
	for _, title := range titles {
		for _, token := range Tokenize(title) {
			counts[token]++
		}
	}

	ranked := make([]KeywordCount, 0, len(counts))
	for keyword, count := range counts {
		ranked = append(ranked, KeywordCount{Keyword: keyword, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Keyword < ranked[j].Keyword
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked, nil
}

// CategoryBreakdown returns per-category article counts and total
// engagement (points plus comments plus reactions) across the window.
// Articles without a category land in the "Uncategorized" bucket.
func (a *Aggregator) CategoryBreakdown(ctx context.Context, window Window) (map[string]CategoryTrend, error) {
	where, args := window.clause()

	type row struct {
		Category        string `db:"category"`
		ArticleCount    int    `db:"article_count"`
		TotalEngagement int    `db:"total_engagement"`
	}
	var rows []row
	query := `SELECT COALESCE(category, 'Uncategorized') AS category,
	       COUNT(*) AS article_count,
	       COALESCE(SUM(points + comments + reactions), 0) AS total_engagement
	FROM articles` + where + `
	GROUP BY COALESCE(category, 'Uncategorized')`
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("aggregating categories: %w", err)
	}

	breakdown := make(map[string]CategoryTrend, len(rows))
	for _, r := range rows {
		breakdown[r.Category] = CategoryTrend{
			ArticleCount:    r.ArticleCount,
			TotalEngagement: r.TotalEngagement,
		}
	}
	return breakdown, nil
}

// Tokenize lower-cases a title, splits it on non-alphanumeric boundaries
// and drops stop words and single-rune tokens.
func Tokenize(title string) []string {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, token := range fields {
		if utf8.RuneCountInString(token) < 2 {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}
