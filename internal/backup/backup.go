// Package backup exports the articles corpus to CSV or JSON and restores
// it from CSV through the regular dedup path.
package backup

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"techtrends/aggregator/internal/models"
	"techtrends/aggregator/internal/normalize"
	"techtrends/aggregator/internal/store"
)

var csvHeader = []string{
	"identity", "source", "title", "url", "author", "description",
	"published_at", "published_approx", "points", "comments", "reactions",
	"reading_time", "tags", "category", "ingested_at",
}

// WriteCSV writes articles to w in the export column layout.
func WriteCSV(w io.Writer, articles []models.Article) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for _, a := range articles {
		category := ""
		if a.Category != nil {
			category = *a.Category
		}
		record := []string{
			a.Identity,
			a.Source.String(),
			a.Title,
			a.URL,
			a.Author,
			a.Description,
			a.PublishedAt.UTC().Format(time.RFC3339),
			strconv.FormatBool(a.PublishedApprox),
			strconv.Itoa(a.Points),
			strconv.Itoa(a.Comments),
			strconv.Itoa(a.Reactions),
			strconv.Itoa(a.ReadingTime),
			a.Tags,
			category,
			a.IngestedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON writes articles to w as an indented JSON array.
func WriteJSON(w io.Writer, articles []models.Article) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(articles); err != nil {
		return fmt.Errorf("encoding articles: %w", err)
	}
	return nil
}

// ImportResult summarizes one CSV import.
type ImportResult struct {
	Inserted         int
	SkippedDuplicate int
	Failed           int
	LineErrors       []string
}

// Importer restores article rows from CSV exports.
type Importer struct {
	store *store.Store
	now   func() time.Time
}

// NewImporter creates an importer on an open store.
func NewImporter(st *store.Store) *Importer {
	return &Importer{store: st, now: time.Now}
}

// ImportCSV reads articles from a CSV file and inserts them through the
// regular dedup path. Rows that cannot be parsed are collected as line
// errors and do not stop the import.
func (i *Importer) ImportCSV(ctx context.Context, csvPath string) (*ImportResult, error) {
	log.Info().Str("csv", csvPath).Msg("Starting article import")

	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("opening CSV file: %w", err)
	}
	defer f.Close()

	result, err := i.importFrom(ctx, f)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("inserted", result.Inserted).
		Int("skipped_duplicate", result.SkippedDuplicate).
		Int("failed", result.Failed).
		Int("line_errors", len(result.LineErrors)).
		Msg("Import completed")
	return result, nil
}

func (i *Importer) importFrom(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	for _, column := range []string{"source", "title"} {
		if findColumnIndex(header, column) < 0 {
			return nil, fmt.Errorf("required column %q not found in CSV header", column)
		}
	}

	identityIdx := findColumnIndex(header, "identity")
	sourceIdx := findColumnIndex(header, "source")
	titleIdx := findColumnIndex(header, "title")
	urlIdx := findColumnIndex(header, "url")
	authorIdx := findColumnIndex(header, "author")
	descriptionIdx := findColumnIndex(header, "description")
	publishedIdx := findColumnIndex(header, "published_at")
	approxIdx := findColumnIndex(header, "published_approx")
	pointsIdx := findColumnIndex(header, "points")
	commentsIdx := findColumnIndex(header, "comments")
	reactionsIdx := findColumnIndex(header, "reactions")
	readingTimeIdx := findColumnIndex(header, "reading_time")
	tagsIdx := findColumnIndex(header, "tags")
	categoryIdx := findColumnIndex(header, "category")
	ingestedIdx := findColumnIndex(header, "ingested_at")

	result := &ImportResult{}
	now := i.now().UTC()
	var batch []models.Article

	lineCount := 1 // Header was already read
	for {
		lineCount++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.LineErrors = append(result.LineErrors, fmt.Sprintf("line %d: %v", lineCount, err))
			continue
		}
		if len(record) == 0 || (len(record) == 1 && record[0] == "") {
			continue
		}

		article, err := parseRecord(record, recordColumns{
			identity: identityIdx, source: sourceIdx, title: titleIdx, url: urlIdx,
			author: authorIdx, description: descriptionIdx, published: publishedIdx,
			approx: approxIdx, points: pointsIdx, comments: commentsIdx,
			reactions: reactionsIdx, readingTime: readingTimeIdx, tags: tagsIdx,
			category: categoryIdx, ingested: ingestedIdx,
		}, now)
		if err != nil {
			result.LineErrors = append(result.LineErrors, fmt.Sprintf("line %d: %v", lineCount, err))
			continue
		}

		batch = append(batch, article)
	}

	upserted, err := i.store.UpsertBatch(ctx, batch)
	result.Inserted = upserted.Inserted
	result.SkippedDuplicate = upserted.SkippedDuplicate
	result.Failed = upserted.Failed
	if err != nil {
		return result, fmt.Errorf("storing imported articles: %w", err)
	}
	return result, nil
}

type recordColumns struct {
	identity    int
	source      int
	title       int
	url         int
	author      int
	description int
	published   int
	approx      int
	points      int
	comments    int
	reactions   int
	readingTime int
	tags        int
	category    int
	ingested    int
}

func parseRecord(record []string, cols recordColumns, now time.Time) (models.Article, error) {
	var article models.Article

	source, err := models.ParseSource(strings.ToLower(strings.TrimSpace(safeGetValue(record, cols.source))))
	if err != nil {
		return article, err
	}
	article.Source = source

	article.Title = strings.TrimSpace(safeGetValue(record, cols.title))
	if article.Title == "" {
		return article, fmt.Errorf("empty title")
	}

	article.URL = strings.TrimSpace(safeGetValue(record, cols.url))
	article.Author = strings.TrimSpace(safeGetValue(record, cols.author))
	article.Description = safeGetValue(record, cols.description)
	article.Tags = strings.TrimSpace(safeGetValue(record, cols.tags))

	article.Identity = strings.TrimSpace(safeGetValue(record, cols.identity))
	if article.Identity == "" {
		if article.URL == "" {
			return article, fmt.Errorf("no identity and no url to derive one from")
		}
		article.Identity = normalize.Identity(article.Source, article.URL)
	}

	published, err := parseTimeField(safeGetValue(record, cols.published))
	if err != nil {
		return article, err
	}
	if published.IsZero() {
		article.PublishedAt = now
		article.PublishedApprox = true
	} else {
		article.PublishedAt = published
		if raw := strings.TrimSpace(safeGetValue(record, cols.approx)); raw != "" {
			approx, err := strconv.ParseBool(raw)
			if err != nil {
				return article, fmt.Errorf("bad published_approx value %q", raw)
			}
			article.PublishedApprox = approx
		}
	}

	ingested, err := parseTimeField(safeGetValue(record, cols.ingested))
	if err != nil {
		return article, err
	}
	if ingested.IsZero() {
		ingested = now
	}
	article.IngestedAt = ingested

	if article.Points, err = atoiField(record, cols.points); err != nil {
		return article, fmt.Errorf("bad points value: %w", err)
	}
	if article.Comments, err = atoiField(record, cols.comments); err != nil {
		return article, fmt.Errorf("bad comments value: %w", err)
	}
	if article.Reactions, err = atoiField(record, cols.reactions); err != nil {
		return article, fmt.Errorf("bad reactions value: %w", err)
	}
	if article.ReadingTime, err = atoiField(record, cols.readingTime); err != nil {
		return article, fmt.Errorf("bad reading_time value: %w", err)
	}

	if category := strings.TrimSpace(safeGetValue(record, cols.category)); category != "" {
		article.Category = &category
	}

	return article, nil
}

var importTimeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimeField(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, format := range importTimeFormats {
		if ts, err := time.Parse(format, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func atoiField(record []string, index int) (int, error) {
	raw := strings.TrimSpace(safeGetValue(record, index))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func findColumnIndex(header []string, columnName string) int {
	for i, col := range header {
		if strings.EqualFold(col, columnName) {
			return i
		}
	}
	return -1
}

// safeGetValue returns the record value at index, or an empty string when
// the index is missing or out of bounds for this row.
func safeGetValue(record []string, index int) string {
	if index >= 0 && index < len(record) {
		return record[index]
	}
	return ""
}
