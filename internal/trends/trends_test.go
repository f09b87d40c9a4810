package trends

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"techtrends/aggregator/internal/database"
	"techtrends/aggregator/internal/models"
	"techtrends/aggregator/internal/store"
)

func newTestAggregator(t *testing.T) (*Aggregator, *store.Store) {
	t.Helper()
	cfg := database.NewConfig(filepath.Join(t.TempDir(), "test.db"))
	db, err := database.NewDB(cfg)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), store.New(db)
}

func storedArticle(identity, title string, published time.Time) models.Article {
	return models.Article{
		Identity:    identity,
		Source:      models.SourceHackerNews,
		Title:       title,
		PublishedAt: published,
		IngestedAt:  published,
	}
}

func seed(t *testing.T, s *store.Store, articles ...models.Article) {
	t.Helper()
	result, err := s.UpsertBatch(context.Background(), articles)
	if err != nil {
		t.Fatalf("seeding articles: %v", err)
	}
	if result.Inserted != len(articles) {
		t.Fatalf("seeded %d of %d articles", result.Inserted, len(articles))
	}
}

func TestTrendingKeywordsTieBreak(t *testing.T) {
	agg, s := newTestAggregator(t)
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seed(t, s,
		storedArticle("aaa", "Rust is fast", ts),
		storedArticle("bbb", "Rust and Go", ts),
		storedArticle("ccc", "Go is simple", ts),
	)

	got, err := agg.TrendingKeywords(context.Background(), Window{}, 2)
	if err != nil {
		t.Fatalf("TrendingKeywords failed: %v", err)
	}

	want := []KeywordCount{
		{Keyword: "go", Count: 2},
		{Keyword: "rust", Count: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTrendingKeywordsOrdering(t *testing.T) {
	agg, s := newTestAggregator(t)
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seed(t, s,
		storedArticle("aaa", "kubernetes kubernetes kubernetes", ts),
		storedArticle("bbb", "docker docker", ts),
		storedArticle("ccc", "terraform", ts),
	)

	got, err := agg.TrendingKeywords(context.Background(), Window{}, 10)
	if err != nil {
		t.Fatalf("TrendingKeywords failed: %v", err)
	}

	want := []KeywordCount{
		{Keyword: "kubernetes", Count: 3},
		{Keyword: "docker", Count: 2},
		{Keyword: "terraform", Count: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTrendingKeywordsWindow(t *testing.T) {
	agg, s := newTestAggregator(t)
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	seed(t, s,
		storedArticle("aaa", "inside window", since),
		storedArticle("bbb", "before window", since.Add(-time.Hour)),
		storedArticle("ccc", "boundary excluded", until),
	)

	got, err := agg.TrendingKeywords(context.Background(), Window{Since: since, Until: until}, 10)
	if err != nil {
		t.Fatalf("TrendingKeywords failed: %v", err)
	}

	want := []KeywordCount{
		{Keyword: "inside", Count: 1},
		{Keyword: "window", Count: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTrendingKeywordsCaseFolded(t *testing.T) {
	agg, s := newTestAggregator(t)
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seed(t, s, storedArticle("aaa", "GO versus Go versus gO", ts))

	got, err := agg.TrendingKeywords(context.Background(), Window{}, 10)
	if err != nil {
		t.Fatalf("TrendingKeywords failed: %v", err)
	}

	want := []KeywordCount{
		{Keyword: "go", Count: 3},
		{Keyword: "versus", Count: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTrendingKeywordsEmptyCorpus(t *testing.T) {
	agg, _ := newTestAggregator(t)

	got, err := agg.TrendingKeywords(context.Background(), Window{}, 10)
	if err != nil {
		t.Fatalf("TrendingKeywords failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no keywords, got %v", got)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		title string
		want  []string
	}{
		{"The Go-based API, in 2024!", []string{"go", "based", "api", "2024"}},
		{"C is low-level", []string{"low", "level"}},
		{"Why I like writing parsers", []string{"why", "like", "writing", "parsers"}},
		{"", nil},
		{"!!! ---", nil},
	}

	for _, tt := range tests {
		got := Tokenize(tt.title)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}
}

func TestCategoryBreakdown(t *testing.T) {
	agg, s := newTestAggregator(t)
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	python := "Python"
	devops := "DevOps"

	a := storedArticle("aaa", "flask tips", ts)
	a.Category = &python
	a.Points = 10
	a.Comments = 2
	b := storedArticle("bbb", "django tips", ts)
	b.Category = &python
	b.Reactions = 3
	c := storedArticle("ccc", "docker tips", ts)
	c.Category = &devops
	c.Points = 7
	d := storedArticle("ddd", "assorted links", ts)

	seed(t, s, a, b, c, d)

	got, err := agg.CategoryBreakdown(context.Background(), Window{})
	if err != nil {
		t.Fatalf("CategoryBreakdown failed: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 categories, got %d: %v", len(got), got)
	}
	if trend := got["Python"]; trend.ArticleCount != 2 || trend.TotalEngagement != 15 {
		t.Errorf("unexpected Python trend %+v", trend)
	}
	if trend := got["DevOps"]; trend.ArticleCount != 1 || trend.TotalEngagement != 7 {
		t.Errorf("unexpected DevOps trend %+v", trend)
	}
	if trend := got["Uncategorized"]; trend.ArticleCount != 1 || trend.TotalEngagement != 0 {
		t.Errorf("unexpected Uncategorized trend %+v", trend)
	}
}

func TestCategoryBreakdownWindow(t *testing.T) {
	agg, s := newTestAggregator(t)
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	python := "Python"
	in := storedArticle("aaa", "pandas tricks", since.Add(time.Hour))
	in.Category = &python
	out := storedArticle("bbb", "numpy tricks", since.Add(-time.Hour))
	out.Category = &python

	seed(t, s, in, out)

	got, err := agg.CategoryBreakdown(context.Background(), Window{Since: since})
	if err != nil {
		t.Fatalf("CategoryBreakdown failed: %v", err)
	}
	if trend := got["Python"]; trend.ArticleCount != 1 {
		t.Errorf("expected 1 article inside the window, got %d", trend.ArticleCount)
	}
}
