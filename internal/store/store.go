// Package store persists normalized articles and answers corpus queries.
package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"

	"techtrends/aggregator/internal/database"
	"techtrends/aggregator/internal/models"
)

// ErrNotFound is returned when a lookup matches no article.
var ErrNotFound = errors.New("article not found")

// Store wraps access to the articles corpus.
type Store struct {
	db *database.DB
}

// New creates a Store on an open database handle.
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// UpsertResult reports the outcome of one batch insert.
type UpsertResult struct {
	Inserted         int `json:"inserted"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	Failed           int `json:"failed"`
}

const insertArticleSQL = `
INSERT INTO articles (
    identity, source, title, url, author, description,
    published_at, published_approx, points, comments, reactions,
    reading_time, tags, category, ingested_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(identity) DO NOTHING`

// UpsertBatch inserts each article independently, outside any batch
// transaction, so one failing row cannot block the rest. An existing
// identity counts as a duplicate skip; the uniqueness constraint is the
// arbiter when concurrent runs race on the same article. Rows that fail
// for other reasons are counted and logged, and the batch carries on.
func (s *Store) UpsertBatch(ctx context.Context, articles []models.Article) (UpsertResult, error) {
	var result UpsertResult

	stmt, err := s.db.PreparexContext(ctx, insertArticleSQL)
	if err != nil {
		return result, newStorageError("preparing article insert", err)
	}
	defer stmt.Close()

	for _, a := range articles {
		res, err := stmt.ExecContext(ctx,
			a.Identity, a.Source, a.Title, a.URL, a.Author, a.Description,
			a.PublishedAt.UTC(), a.PublishedApprox, a.Points, a.Comments, a.Reactions,
			a.ReadingTime, a.Tags, a.Category, a.IngestedAt.UTC(),
		)
		if err != nil {
			serr := newStorageError("inserting article", err)
			if serr.Cause == CauseConstraintViolation {
				// Same title and source under a different identity.
				result.SkippedDuplicate++
				log.Debug().Str("identity", a.Identity).Str("title", a.Title).Msg("Skipping duplicate article")
				continue
			}
			result.Failed++
			log.Error().Err(serr).Str("identity", a.Identity).Str("title", a.Title).Msg("Failed to insert article")
			continue
		}

		rows, err := res.RowsAffected()
		if err != nil {
			result.Failed++
			log.Error().Err(err).Str("identity", a.Identity).Msg("Failed to read insert result")
			continue
		}
		if rows == 0 {
			result.SkippedDuplicate++
			continue
		}
		result.Inserted++
	}

	return result, nil
}

// All returns the whole corpus, newest first, for export flows that must
// not be clipped by query paging.
func (s *Store) All(ctx context.Context) ([]models.Article, error) {
	articles := []models.Article{}
	err := s.db.SelectContext(ctx, &articles,
		`SELECT * FROM articles ORDER BY published_at DESC, identity ASC`)
	if err != nil {
		return nil, newStorageError("loading articles", err)
	}
	return articles, nil
}

// GetByIdentity returns one article or ErrNotFound.
func (s *Store) GetByIdentity(ctx context.Context, identity string) (*models.Article, error) {
	var article models.Article
	err := s.db.GetContext(ctx, &article, `SELECT * FROM articles WHERE identity = ?`, identity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, newStorageError("loading article", err)
	}
	return &article, nil
}

// RecategorizeAll re-runs the assign function over every stored article in
// one transaction and rewrites the category column only. It returns the
// number of articles whose category changed.
func (s *Store) RecategorizeAll(ctx context.Context, assign func(models.Article) *string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, newStorageError("starting recategorize transaction", err)
	}
	defer tx.Rollback()

	var articles []models.Article
	if err := tx.SelectContext(ctx, &articles, `SELECT * FROM articles`); err != nil {
		return 0, newStorageError("loading articles", err)
	}

	stmt, err := tx.PreparexContext(ctx, `UPDATE articles SET category = ? WHERE identity = ?`)
	if err != nil {
		return 0, newStorageError("preparing category update", err)
	}
	defer stmt.Close()

	var changed int64
	for _, a := range articles {
		next := assign(a)
		if equalCategory(a.Category, next) {
			continue
		}
		if _, err := stmt.ExecContext(ctx, next, a.Identity); err != nil {
			return 0, newStorageError("updating category", err)
		}
		changed++
	}

	if err := tx.Commit(); err != nil {
		return 0, newStorageError("committing recategorize transaction", err)
	}

	log.Info().Int64("changed", changed).Int("scanned", len(articles)).Msg("Recategorized articles")
	return changed, nil
}

func equalCategory(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
